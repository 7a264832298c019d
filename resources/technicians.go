// Package resources owns the technician pool and the spares inventory.
// Neither type locks; both are mutated only from the engine loop.
package resources

import (
	"errors"
	"fmt"
	"time"

	"maintcore/config"
)

var (
	ErrTechnicianUnavailable = errors.New("technician unavailable")
	ErrUnknownTechnician     = errors.New("unknown technician")
)

type Skill string

const (
	SkillJunior     Skill = "junior"
	SkillSenior     Skill = "senior"
	SkillSpecialist Skill = "specialist"
)

// searchOrder lists skills most senior first.
var searchOrder = []Skill{SkillSpecialist, SkillSenior, SkillJunior}

func (s Skill) Valid() bool {
	return s == SkillJunior || s == SkillSenior || s == SkillSpecialist
}

type Technician struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Skill           Skill      `json:"skill"`
	Available       bool       `json:"available"`
	CurrentTask     string     `json:"current_task,omitempty"`
	NextAvailableAt *time.Time `json:"next_available_at,omitempty"`
}

type Pool struct {
	techs []*Technician
	byID  map[string]*Technician
}

func NewPool(techs []Technician) *Pool {
	p := &Pool{byID: make(map[string]*Technician, len(techs))}
	for i := range techs {
		t := techs[i]
		p.techs = append(p.techs, &t)
		p.byID[t.ID] = &t
	}
	return p
}

// PoolFromSeed builds an all-available pool from configuration.
func PoolFromSeed(seed []config.TechnicianSeed) (*Pool, error) {
	techs := make([]Technician, 0, len(seed))
	for _, s := range seed {
		skill := Skill(s.Skill)
		if !skill.Valid() {
			return nil, fmt.Errorf("technician %s: unknown skill %q", s.ID, s.Skill)
		}
		techs = append(techs, Technician{ID: s.ID, Name: s.Name, Skill: skill, Available: true})
	}
	return NewPool(techs), nil
}

// FindTechnician returns the first available technician holding minSkill or
// anything more senior, searching the required skill first. When nobody
// qualifies any available technician is returned. Nil means nobody is free.
func (p *Pool) FindTechnician(minSkill Skill) *Technician {
	start := len(searchOrder) - 1
	for i, s := range searchOrder {
		if s == minSkill {
			start = i
			break
		}
	}
	for i := start; i >= 0; i-- {
		for _, t := range p.techs {
			if t.Available && t.Skill == searchOrder[i] {
				c := *t
				return &c
			}
		}
	}
	for _, t := range p.techs {
		if t.Available {
			c := *t
			return &c
		}
	}
	return nil
}

// Reserve binds an available technician to task.
func (p *Pool) Reserve(id, task string, nextAvailable *time.Time) error {
	t, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("reserve %s: %w", id, ErrUnknownTechnician)
	}
	if !t.Available {
		return fmt.Errorf("reserve %s for %s (busy with %s): %w", id, task, t.CurrentTask, ErrTechnicianUnavailable)
	}
	t.Available = false
	t.CurrentTask = task
	t.NextAvailableAt = nextAvailable
	return nil
}

// Release frees a technician. Releasing an idle technician is a no-op.
func (p *Pool) Release(id string) error {
	t, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("release %s: %w", id, ErrUnknownTechnician)
	}
	t.Available = true
	t.CurrentTask = ""
	t.NextAvailableAt = nil
	return nil
}

func (p *Pool) Get(id string) (Technician, bool) {
	t, ok := p.byID[id]
	if !ok {
		return Technician{}, false
	}
	return *t, true
}

// List returns copies in seed order.
func (p *Pool) List() []Technician {
	out := make([]Technician, len(p.techs))
	for i, t := range p.techs {
		out[i] = *t
	}
	return out
}
