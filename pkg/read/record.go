package read

// AlignmentHit records the best reference hit for a record.
type AlignmentHit struct {
	Target      string
	MapQ        int
	QueryStart  int
	QueryEnd    int
	TargetStart int
	TargetEnd   int
}

// BarcodeResult is the outcome of barcode classification.
type BarcodeResult struct {
	Kit        string
	Barcode    string
	Score      int
	Classified bool
}

// TrimInterval is a half-open base interval retained after trimming.
type TrimInterval struct {
	Start int
	End   int
}

// Record is the unit of work flowing through the pipeline. It is created
// by the source, owned by exactly one node at a time, and mutated in
// place as it moves downstream.
type Record struct {
	ID         string
	Signal     []float32
	SampleRate int
	// Stride is the number of signal samples covered by one move-table
	// block.
	Stride int

	Sequence string
	Quality  string
	Moves    MoveTable

	// Set once the scaler has normalised the raw signal.
	Scaled      bool
	ShiftMedian float32
	ScaleMAD    float32

	Alignment *AlignmentHit
	Barcode   *BarcodeResult
	PolyATail int
	Trim      *TrimInterval

	// NumSubReads is >1 when an upstream stage split the read.
	NumSubReads int
}

// SignalLen returns the number of raw samples.
func (r *Record) SignalLen() int { return len(r.Signal) }

// Clone returns a deep copy for fan-out to a secondary branch. The copy
// shares no mutable state with the original.
func (r *Record) Clone() *Record {
	dup := *r
	dup.Signal = append([]float32(nil), r.Signal...)
	dup.Moves = append(MoveTable(nil), r.Moves...)
	if r.Alignment != nil {
		hit := *r.Alignment
		dup.Alignment = &hit
	}
	if r.Barcode != nil {
		bc := *r.Barcode
		dup.Barcode = &bc
	}
	if r.Trim != nil {
		tr := *r.Trim
		dup.Trim = &tr
	}
	return &dup
}
