package model

// recordSet maps identifiers to records and remembers insertion order.
// Replacing an existing identifier keeps its original position.
type recordSet struct {
	index   map[string]int
	records []*SequenceRecord
}

func newRecordSet() *recordSet {
	return &recordSet{index: make(map[string]int)}
}

// put stores rec under rec.ID and reports whether it replaced an earlier record.
func (s *recordSet) put(rec *SequenceRecord) bool {
	if i, ok := s.index[rec.ID]; ok {
		s.records[i] = rec
		return true
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return false
}

func (s *recordSet) len() int {
	return len(s.records)
}

// all returns records in insertion order.
func (s *recordSet) all() []*SequenceRecord {
	return s.records
}
