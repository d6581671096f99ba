package internal

type Tracker struct {
	currentOwner *Owner // for lifecycle/cleanup tracking
	currentTask  *Task  // the task holding the section, if any
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) RunWithOwner(owner *Owner, fn func()) {
	prev := t.currentOwner
	t.currentOwner = owner
	defer func() { t.currentOwner = prev }()

	fn()
}

// switchTo makes task current and returns a function restoring the previous state.
func (t *Tracker) switchTo(task *Task) func() {
	prevOwner, prevTask := t.currentOwner, t.currentTask
	t.currentOwner, t.currentTask = task.owner, task

	return func() {
		t.currentOwner, t.currentTask = prevOwner, prevTask
	}
}

func (t *Tracker) CurrentOwner(fallback *Owner) *Owner {
	if t.currentOwner != nil {
		return t.currentOwner
	}
	return fallback
}

func (t *Tracker) CurrentTask() *Task {
	return t.currentTask
}
