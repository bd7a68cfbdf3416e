package sched

// Context is a task's saved execution context. Each task body runs on its
// own goroutine; while switched out that goroutine is parked on resume.
// Save and Restore are the switch primitive and never block.
type Context struct {
	resume   chan struct{}
	launch   func()
	started  bool
	switches uint64
}

func newContext(launch func()) *Context {
	return &Context{
		resume: make(chan struct{}, 1),
		launch: launch,
	}
}

// Save records that the task is being switched out. Its goroutine parks
// after the scheduler lock is released.
func (c *Context) Save() {
	c.switches++
}

// Restore hands the CPU to the task, starting its goroutine on first use.
func (c *Context) Restore() {
	if !c.started {
		c.started = true
		go c.launch()
		return
	}
	c.signal()
}

// kill wakes a parked goroutine so it can observe termination and exit.
func (c *Context) kill() {
	if c.started {
		c.signal()
	}
}

func (c *Context) signal() {
	select {
	case c.resume <- struct{}{}:
	default:
	}
}
