package trial

import "log/slog"

// Module is an experiment script. Run executes as a task and may suspend freely.
type Module interface {
	Run(t *Task)
}

// ModuleFunc adapts a plain function to Module.
type ModuleFunc func(t *Task)

func (f ModuleFunc) Run(t *Task) { f(t) }

// Launch runs m under a fresh owner. Disposing the task's owner (or the
// engine) tears the module down together with every sub-task, timer and
// watcher it created.
func (e *Engine) Launch(name string, m Module) *Task {
	owner := e.NewOwner()
	logger := e.Logger().With("module", name, "owner", owner.ID())

	owner.OnCleanup(func() {
		logger.Info("module torn down")
	})
	owner.OnError(func(rec any) {
		logger.Error("module panicked", "error", rec)
	})

	logger.Info("module starting")
	return e.Go(owner, func(t *Task) {
		m.Run(t)
		logger.Debug("module script returned", slog.Duration("at", e.Now()))
	})
}
