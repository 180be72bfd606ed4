package session

// Observer receives the events of one stream. OnFragment fires zero or more
// times, then exactly one of OnDone, OnCancelled or OnError. All calls come
// from the stream's goroutine, in order, and the next chunk is not read
// until OnFragment returns. The controller frees its slot before the
// terminal call, so a Send from another goroutine may deliver the next
// stream's callbacks while the previous OnDone, OnCancelled or OnError runs.
type Observer interface {
	OnFragment(text string)
	OnDone()
	OnCancelled()
	OnError(err error)
}

// Funcs adapts optional functions to an Observer. Nil fields are skipped.
type Funcs struct {
	Fragment  func(text string)
	Done      func()
	Cancelled func()
	Error     func(err error)
}

func (f Funcs) OnFragment(text string) {
	if f.Fragment != nil {
		f.Fragment(text)
	}
}

func (f Funcs) OnDone() {
	if f.Done != nil {
		f.Done()
	}
}

func (f Funcs) OnCancelled() {
	if f.Cancelled != nil {
		f.Cancelled()
	}
}

func (f Funcs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// Multi fans every event out to each observer in order. Nil entries are
// dropped.
func Multi(observers ...Observer) Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

type multi []Observer

func (m multi) OnFragment(text string) {
	for _, o := range m {
		o.OnFragment(text)
	}
}

func (m multi) OnDone() {
	for _, o := range m {
		o.OnDone()
	}
}

func (m multi) OnCancelled() {
	for _, o := range m {
		o.OnCancelled()
	}
}

func (m multi) OnError(err error) {
	for _, o := range m {
		o.OnError(err)
	}
}
