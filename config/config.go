package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Durations  DurationsConfig  `yaml:"durations"`
	Detection  DetectionConfig  `yaml:"detection"`
	Admission  AdmissionConfig  `yaml:"admission"`
	Audit      AuditConfig      `yaml:"audit"`
	Lookups    LookupsConfig    `yaml:"lookups"`
	Seed       SeedConfig       `yaml:"seed"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Notify     NotifyConfig     `yaml:"notify"`
	Web        WebConfig        `yaml:"web"`
	Log        LogConfig        `yaml:"log"`
}

// ThresholdsConfig drives the maintenance decision policy.
type ThresholdsConfig struct {
	WarningHealth          float64 `yaml:"warning_health"`
	CriticalHealth         float64 `yaml:"critical_health"`
	HighPriorityHealth     float64 `yaml:"high_priority_health"`
	CriticalPriorityHealth float64 `yaml:"critical_priority_health"`
	WarningRUL             float64 `yaml:"warning_rul_hours"`
}

type DurationsConfig struct {
	GeneralHours          float64 `yaml:"general_hours"`
	SpareReplacementHours float64 `yaml:"spare_replacement_hours"`
}

type DetectionConfig struct {
	Vibration     float64 `yaml:"vibration"`
	Temperature   float64 `yaml:"temperature"`
	MotorLoad     float64 `yaml:"motor_load"`
	MotorLoadHigh float64 `yaml:"motor_load_high"`
	DriftWindow   int     `yaml:"drift_window"`
	DriftEpsilon  float64 `yaml:"drift_epsilon"`
	DriftMedium   float64 `yaml:"drift_medium"`
	DriftHigh     float64 `yaml:"drift_high"`
}

// AdmissionConfig caps automatically generated work orders.
type AdmissionConfig struct {
	MaxOpenAnomalyOrders int `yaml:"max_open_anomaly_orders"`
}

type AuditConfig struct {
	Capacity int `yaml:"capacity"`
}

type LookupsConfig struct {
	Spares      map[string][]SpareNeed `yaml:"spares"`
	Drift       map[string]DriftText   `yaml:"drift"`
	Commitments []VendorCommitment     `yaml:"commitments"`
}

type SpareNeed struct {
	Part     string `yaml:"part"`
	Quantity int    `yaml:"quantity"`
}

// DriftText holds the description template (%s receives the direction)
// and the corrective action for each direction.
type DriftText struct {
	Description string `yaml:"description"`
	Increasing  string `yaml:"increasing"`
	Decreasing  string `yaml:"decreasing"`
}

// VendorCommitment pins the delivery date a vendor has promised for a part.
type VendorCommitment struct {
	Vendor     string    `yaml:"vendor"`
	PartNumber string    `yaml:"part_number"`
	Delivery   time.Time `yaml:"delivery"`
}

type SeedConfig struct {
	Technicians []TechnicianSeed `yaml:"technicians"`
	Spares      []SpareSeed      `yaml:"spares"`
}

type TechnicianSeed struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Skill string `yaml:"skill"`
}

type SpareSeed struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	PartNumber   string  `yaml:"part_number"`
	Quantity     int     `yaml:"quantity"`
	MinStock     int     `yaml:"min_stock"`
	LeadTimeDays int     `yaml:"lead_time_days"`
	Vendor       string  `yaml:"vendor"`
	UnitCost     float64 `yaml:"unit_cost"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"processed_ttl"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "kafka", "mqtt" or "none"
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	TelemetryTopic      string        `yaml:"telemetry_topic"`
	RecordsTopic        string        `yaml:"records_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	StationID           string        `yaml:"station_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type NotifyConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type WebConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	SessionSecret string   `yaml:"session_secret"`
	APIKeys       []string `yaml:"api_keys"`
	RatePerSecond float64  `yaml:"rate_per_second"`
	RateBurst     int      `yaml:"rate_burst"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

func Defaults() *Config {
	return &Config{
		Thresholds: ThresholdsConfig{
			WarningHealth:          70,
			CriticalHealth:         50,
			HighPriorityHealth:     60,
			CriticalPriorityHealth: 30,
			WarningRUL:             500,
		},
		Durations: DurationsConfig{
			GeneralHours:          2,
			SpareReplacementHours: 4,
		},
		Detection: DetectionConfig{
			Vibration:     5.0,
			Temperature:   65,
			MotorLoad:     90,
			MotorLoadHigh: 95,
			DriftWindow:   30,
			DriftEpsilon:  0.01,
			DriftMedium:   1.0,
			DriftHigh:     2.0,
		},
		Admission: AdmissionConfig{MaxOpenAnomalyOrders: 2},
		Audit:     AuditConfig{Capacity: 100},
		Lookups: LookupsConfig{
			Spares:      DefaultSparesMap(),
			Drift:       DefaultDriftText(),
			Commitments: nil,
		},
		Seed: SeedConfig{
			Technicians: []TechnicianSeed{
				{ID: "tech-1", Name: "A. Moreno", Skill: "specialist"},
				{ID: "tech-2", Name: "J. Okafor", Skill: "senior"},
				{ID: "tech-3", Name: "L. Brandt", Skill: "junior"},
			},
			Spares: []SpareSeed{
				{ID: "sp-1", Name: "Spindle Bearing", PartNumber: "BRG-6205-2RS", Quantity: 4, MinStock: 2, LeadTimeDays: 5, Vendor: "SKF", UnitCost: 42.5},
				{ID: "sp-2", Name: "Drive Belt", PartNumber: "BLT-XPZ-1250", Quantity: 2, MinStock: 1, LeadTimeDays: 3, Vendor: "Gates", UnitCost: 18},
				{ID: "sp-3", Name: "Upper Punch Set", PartNumber: "PNC-D-24", Quantity: 0, MinStock: 1, LeadTimeDays: 14, Vendor: "Natoli", UnitCost: 960},
				{ID: "sp-4", Name: "Thermal Sensor", PartNumber: "PT100-A", Quantity: 3, MinStock: 1, LeadTimeDays: 2, Vendor: "Omega", UnitCost: 65},
				{ID: "sp-5", Name: "Compression Roller", PartNumber: "RLR-MC-80", Quantity: 1, MinStock: 1, LeadTimeDays: 21, Vendor: "Fette", UnitCost: 2150},
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "maintcore.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "maintcore",
				User:     "maintcore",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      72 * time.Hour,
		},
		Messaging: MessagingConfig{
			Backend: "kafka",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "maintcore",
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "maintcore",
			},
			TelemetryTopic:      "maint.telemetry",
			RecordsTopic:        "maint.records",
			OutboxDrainInterval: 5 * time.Second,
			StationID:           "line-1",
		},
		Notify: NotifyConfig{
			NATSURL:       "",
			SubjectPrefix: "maint.notify",
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8085,
			SessionSecret: "change-me-in-production",
			APIKeys:       []string{"dev-api-key-change-in-production"},
			RatePerSecond: 20,
			RateBurst:     40,
		},
	}
}

// DefaultSparesMap maps components and anomaly sources to the parts a
// repair consumes.
func DefaultSparesMap() map[string][]SpareNeed {
	return map[string][]SpareNeed{
		"Main Spindle":       {{Part: "Spindle Bearing", Quantity: 2}},
		"Turret Drive":       {{Part: "Drive Belt", Quantity: 1}},
		"Punch Assembly":     {{Part: "Upper Punch Set", Quantity: 1}},
		"Compression Roller": {{Part: "Compression Roller", Quantity: 1}, {Part: "Spindle Bearing", Quantity: 2}},
		"Vibration Sensor":   {{Part: "Spindle Bearing", Quantity: 2}},
		"Temperature Sensor": {{Part: "Thermal Sensor", Quantity: 1}},
		"Motor Load Sensor":  {{Part: "Drive Belt", Quantity: 1}},
	}
}

func DefaultDriftText() map[string]DriftText {
	return map[string]DriftText{
		"weight": {
			Description: "Tablet weight %s - potential fill depth adjustment needed",
			Increasing:  "Decrease feeder speed slightly",
			Decreasing:  "Increase feeder speed slightly",
		},
		"thickness": {
			Description: "Thickness %s - check punch wear or compression settings",
			Increasing:  "Increase compression force",
			Decreasing:  "Decrease compression force",
		},
		"hardness": {
			Description: "Hardness %s - may affect dissolution profile",
			Increasing:  "Decrease main compression force",
			Decreasing:  "Increase main compression force",
		},
		"feeder_speed": {
			Description: "Feeder speed drift detected - check hopper level",
			Increasing:  "Check hopper level and material flow",
			Decreasing:  "Check hopper level and material flow",
		},
		"turret_speed": {
			Description: "Turret speed variation - verify drive belt tension",
			Increasing:  "Verify drive belt tension and motor condition",
			Decreasing:  "Verify drive belt tension and motor condition",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }
