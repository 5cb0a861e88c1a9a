package command

// SegmentBasic is the proof shape of a segment.
type SegmentBasic uint8

const (
	// OptSigned proves one non-proof update
	OptSigned SegmentBasic = iota

	// OptSignedOptSigned proves two consecutive non-proof updates
	OptSignedOptSigned

	// Proved proves one proof-authorised update
	Proved
)

// SegmentKind says how many top-level commands start inside the segment, so
// the driver knows which start data to load.
type SegmentKind uint8

const (
	// KindSame continues the current command
	KindSame SegmentKind = iota

	// KindNew starts one new command
	KindNew

	// KindTwoNew starts two new commands
	KindTwoNew
)

// SegmentUpdate locates one update inside the grouped command list.
type SegmentUpdate struct {
	// CmdIndex indexes into the grouped commands
	CmdIndex int

	// UpdateIndex is the position within the command, fee payer at 0
	UpdateIndex int

	// Update is the located update
	Update *AccountUpdate

	// IsStart marks the first update of its command
	IsStart bool
}

// Segment is one proof unit of a grouped command list.
type Segment struct {
	Basic   SegmentBasic
	Kind    SegmentKind
	Updates []SegmentUpdate
}

// GroupCommands partitions the flat update streams of the commands into
// segments: runs of at most two non-proof updates, or single proof updates.
// A pending non-proof update is flushed by a proof update or by the end of
// the stream.
func GroupCommands(cmds []*ZkAppCommand) []Segment {
	var flat []SegmentUpdate
	for ci, c := range cmds {
		for ui, u := range c.AllUpdates() {
			flat = append(flat, SegmentUpdate{
				CmdIndex:    ci,
				UpdateIndex: ui,
				Update:      u,
				IsStart:     ui == 0,
			})
		}
	}

	var segments []Segment
	var pending *SegmentUpdate

	flush := func() {
		if pending == nil {
			return
		}
		segments = append(segments, makeSegment(OptSigned, []SegmentUpdate{*pending}))
		pending = nil
	}

	for i := range flat {
		su := flat[i]
		if su.Update.Body.AuthorizationKind == AuthKindProof {
			flush()
			segments = append(segments, makeSegment(Proved, []SegmentUpdate{su}))
			continue
		}
		if pending == nil {
			pending = &flat[i]
			continue
		}
		segments = append(segments, makeSegment(OptSignedOptSigned, []SegmentUpdate{*pending, su}))
		pending = nil
	}
	flush()
	return segments
}

func makeSegment(basic SegmentBasic, updates []SegmentUpdate) Segment {
	starts := 0
	for _, u := range updates {
		if u.IsStart {
			starts++
		}
	}
	kind := KindSame
	switch starts {
	case 1:
		kind = KindNew
	case 2:
		kind = KindTwoNew
	}
	return Segment{Basic: basic, Kind: kind, Updates: updates}
}
