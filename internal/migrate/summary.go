package migrate

// Summary aggregates results across records and batches.
type Summary struct {
	Processed  int
	Succeeded  int
	Failed     int
	InputSize  int64
	OutputSize int64
	Failures   []Result
}

// Add records one result.
func (s *Summary) Add(res Result) {
	s.Processed++

	if !res.Success() {
		s.Failed++
		s.Failures = append(s.Failures, res)

		return
	}

	s.Succeeded++
	s.InputSize += res.InputSize
	s.OutputSize += res.OutputSize
}

// Merge folds other into s.
func (s *Summary) Merge(other Summary) {
	s.Processed += other.Processed
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.InputSize += other.InputSize
	s.OutputSize += other.OutputSize
	s.Failures = append(s.Failures, other.Failures...)
}
