package pipeline

type config struct {
	queueCapacity int
}

func defaultConfig() config {
	return config{queueCapacity: 64}
}

// Option configures pipeline construction.
type Option func(*config)

// WithQueueCapacity sets the bounded capacity of every inter-node
// queue. Producers block once a queue is full.
func WithQueueCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueCapacity = n
		}
	}
}
