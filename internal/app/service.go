package app

import (
	"reelpilot/internal/archive"
	"reelpilot/internal/checkpoint"
	"reelpilot/internal/lifecycle"
	"reelpilot/internal/queue"
	"reelpilot/internal/quota"
	"reelpilot/internal/uploader"
	"reelpilot/internal/worker"
	"reelpilot/pkg/config"
)

type Service struct {
	cfg        *config.Config
	registry   *lifecycle.Registry
	queue      *queue.Queue
	ledger     *quota.Ledger
	checkpoint *checkpoint.Manager
	uploader   uploader.Uploader
	archiver   *archive.Archiver
	mirror     *archive.GCSMirror
	worker     *worker.Worker
}

type ServiceOptions struct {
	Config     *config.Config
	Registry   *lifecycle.Registry
	Queue      *queue.Queue
	Ledger     *quota.Ledger
	Checkpoint *checkpoint.Manager
	Uploader   uploader.Uploader
	Archiver   *archive.Archiver
	Mirror     *archive.GCSMirror
	Worker     *worker.Worker
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		cfg:        opts.Config,
		registry:   opts.Registry,
		queue:      opts.Queue,
		ledger:     opts.Ledger,
		checkpoint: opts.Checkpoint,
		uploader:   opts.Uploader,
		archiver:   opts.Archiver,
		mirror:     opts.Mirror,
		worker:     opts.Worker,
	}
}

func (s *Service) Config() *config.Config        { return s.cfg }
func (s *Service) Registry() *lifecycle.Registry { return s.registry }
func (s *Service) Queue() *queue.Queue           { return s.queue }
func (s *Service) Ledger() *quota.Ledger         { return s.ledger }
func (s *Service) Worker() *worker.Worker        { return s.worker }

// Close releases resources held by the service: the quota ledger's database
// handle and the archive mirror's client, when present.
func (s *Service) Close() error {
	var firstErr error
	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			firstErr = err
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
