package model

// Scanner iterates entries in file order, advancing by each entry's size
// on disk. It is bounded by the log length observed when the scan started;
// entries appended afterwards need a fresh scan.
type Scanner struct {
	log *LogFile
	end int64

	cur      *Entry
	curStart int64
	pos      int64
	err      error
}

// Scan starts a forward scan at offset.
func (lf *LogFile) Scan(offset int64) *Scanner {
	return &Scanner{
		log: lf,
		end: lf.Size(),
		pos: offset,
	}
}

// Next advances to the next entry. It returns false at the end of the
// scan window or on the first decode failure, which is left in Err.
func (s *Scanner) Next() bool {
	if s.err != nil || s.pos >= s.end {
		return false
	}

	entry, size, err := s.log.readEntry(s.pos, s.end)
	if err != nil {
		s.err = err
		return false
	}

	s.cur = entry
	s.curStart = s.pos
	s.pos += size
	return true
}

// Entry is the current entry.
func (s *Scanner) Entry() *Entry {
	return s.cur
}

// Offset is the byte offset where the current entry begins.
func (s *Scanner) Offset() int64 {
	return s.curStart
}

// Pos is the position just past the current entry, the next read point.
func (s *Scanner) Pos() int64 {
	return s.pos
}

func (s *Scanner) Err() error {
	return s.err
}
