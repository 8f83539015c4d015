package module

// Thread is the per-session object handed to lifecycle calls (interface,
// access, input, outputs, colour conversion). The bank never looks inside it.
type Thread struct {
	// Name identifies the session for logging.
	Name string

	// Params carries caller supplied settings (device, size, format...).
	Params map[string]string

	// Private is owned by the module bound to this thread.
	Private any
}

// NewThread returns a thread with an initialised parameter map.
func NewThread(name string) *Thread {
	return &Thread{Name: name, Params: make(map[string]string)}
}

// Param returns a parameter or def when unset.
func (t *Thread) Param(key, def string) string {
	if t == nil || t.Params == nil {
		return def
	}
	if v, ok := t.Params[key]; ok {
		return v
	}
	return def
}

// Packet is a chunk of demultiplexed or raw stream data.
type Packet struct {
	StreamID int
	PTS      int64
	Payload  []byte
}

// Program selects a program in a multi-program stream.
type Program struct {
	ID  int
	PID int
}

// Area is a title/chapter region of a seekable medium.
type Area struct {
	ID    int
	Start int64
	Size  int64
}

// DecoderConfig is what a decoder's Run receives.
type DecoderConfig struct {
	Thread   *Thread
	StreamID int
	Type     string
	Input    <-chan Packet
}

// Block is one 8x8 block of DCT coefficients.
type Block [64]int16

// ScanTables holds the zig-zag and alternate scan orders.
type ScanTables [2][64]uint8

// MotionSelector picks one of the sixteen motion compensation routines.
type MotionSelector struct {
	Field   bool
	Average bool
	Variant int // 0..3
}

// Index flattens the selector into [2][2][4] order.
func (s MotionSelector) Index() int {
	i := 0
	if s.Field {
		i += 8
	}
	if s.Average {
		i += 4
	}
	return i + s.Variant&3
}

// IMDCTState holds precomputed tables owned by an IMDCT module.
type IMDCTState struct {
	Private any
}

// DownmixParams carries AC3 downmix gains.
type DownmixParams struct {
	Unit float32
	CLev float32
	SLev float32
}

// Palette is an indexed colour table for 8-bit video outputs.
type Palette struct {
	Red, Green, Blue, Transparency []uint16
}
