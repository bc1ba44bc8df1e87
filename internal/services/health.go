package services

// HealthService answers liveness probes.
type HealthService struct{}

func NewHealthService() *HealthService {
	return &HealthService{}
}

func (s *HealthService) Get() error {
	return nil
}
