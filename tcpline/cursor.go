package tcpline

import "context"

// Cursor is a lazy, effectively infinite sequence of complete lines pulled
// from a Conn.
//
// Each Next call is one atomic exchange, so cursor steps share the engine's
// serialization and reconnection behavior, and interleave cleanly with
// request/reply calls from other goroutines. A cursor does not replay:
// bytes already consumed are gone, and a fresh cursor over the same Conn
// simply continues from wherever the shared line buffer currently sits.
//
// Stopping iteration is just ceasing to call Next; there is no background
// activity to tear down.
type Cursor struct {
	conn *Conn
	eol  []byte
}

// Lines returns a cursor over successive eol-terminated lines. A nil eol
// uses the connection's default marker.
func (c *Conn) Lines(eol []byte) *Cursor {
	if len(eol) == 0 {
		eol = c.cfg.eol
	}

	marker := make([]byte, len(eol))
	copy(marker, eol)

	return &Cursor{conn: c, eol: marker}
}

// Next pulls the next complete line, without the EOL marker.
func (cur *Cursor) Next(ctx context.Context) ([]byte, error) {
	return cur.conn.Read(ctx, ReadUntilEOL(cur.eol))
}

// ReadLines pulls n successive lines. Unlike Conn.ReadLines, each line is
// its own exchange, so other callers may interleave between lines.
func (cur *Cursor) ReadLines(ctx context.Context, n int) ([][]byte, error) {
	lines := make([][]byte, 0, n)

	for i := 0; i < n; i++ {
		line, err := cur.Next(ctx)
		if err != nil {
			return lines, err
		}

		lines = append(lines, line)
	}

	return lines, nil
}

// EOL returns a copy of the cursor's line marker.
func (cur *Cursor) EOL() []byte {
	eol := make([]byte, len(cur.eol))
	copy(eol, cur.eol)

	return eol
}
