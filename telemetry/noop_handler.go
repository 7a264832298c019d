package telemetry

// NoOpHandler implements MessageHandler with no-op methods.
type NoOpHandler struct{}

func (NoOpHandler) HandleHealthUpdate(*Envelope, *HealthUpdate)     {}
func (NoOpHandler) HandleAnomalyReport(*Envelope, *AnomalyReport)   {}
func (NoOpHandler) HandleSensorBatch(*Envelope, *SensorBatch)       {}
func (NoOpHandler) HandleSignalBatch(*Envelope, *SignalBatch)       {}
func (NoOpHandler) HandleScheduleUpdate(*Envelope, *ScheduleUpdate) {}

var _ MessageHandler = NoOpHandler{}
