package arena

// PageSize is the granularity memory grows in.
const PageSize = 65536

// Config configures a native address space.
type Config struct {
	// InitialPages is the number of pages allocated up front.
	InitialPages uint32
	// MaxPages limits growth. 0 means 65536 pages (4 GiB).
	MaxPages uint32
	// StackSize is the size of the caller stack region in bytes.
	StackSize uint32
}

// DefaultConfig returns a configuration with two initial pages, a 64 KiB
// caller stack and a 256 page limit.
func DefaultConfig() Config {
	return Config{
		InitialPages: 2,
		MaxPages:     256,
		StackSize:    PageSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialPages == 0 {
		c.InitialPages = d.InitialPages
	}
	if c.StackSize == 0 {
		c.StackSize = d.StackSize
	}
	if c.MaxPages == 0 {
		c.MaxPages = 65536
	}
	if c.MaxPages < c.InitialPages {
		c.MaxPages = c.InitialPages
	}
	return c
}
