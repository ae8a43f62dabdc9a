package lifecycle

import "context"

// FuncService adapts a pair of start/stop closures to the Service
// interface, for wrapping collaborators (the write queue, the RAG cron
// scheduler, the HTTP listener) that were not written with a lifecycle
// interface of their own.
type FuncService struct {
	ServiceName string
	StartFunc   func(ctx context.Context) error
	StopFunc    func(ctx context.Context) error
	ReadyFunc   func(ctx context.Context) error
}

func (f FuncService) Name() string { return f.ServiceName }

func (f FuncService) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f FuncService) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}

// Ready satisfies ReadyChecker. A FuncService built without a ReadyFunc
// reports ready unconditionally, whether or not it has been started.
func (f FuncService) Ready(ctx context.Context) error {
	if f.ReadyFunc == nil {
		return nil
	}
	return f.ReadyFunc(ctx)
}
