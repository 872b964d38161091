package vip

import "log"

const maxBacklog = 100

// backlog keeps the last maxBacklog trace lines. Lines are formatted only
// when emitted, so recording one costs a slice of arguments.
type backlog struct {
	ring  [maxBacklog]traceLine
	next  int // slot for the next line
	count int // lines held, up to maxBacklog
}

type traceLine struct {
	format string
	args   []any
}

func (b *backlog) LazyPrintf(format string, args ...any) {
	b.ring[b.next] = traceLine{format, args}
	b.next = (b.next + 1) % maxBacklog
	if b.count < maxBacklog {
		b.count++
	}
}

// Emit logs the held lines, oldest first.
func (b *backlog) Emit() {
	first := (b.next - b.count + maxBacklog) % maxBacklog
	for i := 0; i < b.count; i++ {
		l := b.ring[(first+i)%maxBacklog]
		log.Printf(l.format, l.args...)
	}
}

func (b *backlog) Reset() {
	b.ring = [maxBacklog]traceLine{}
	b.next, b.count = 0, 0
}
