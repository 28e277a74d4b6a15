package mailclient

import (
	"bytes"
	"fmt"
	"time"
)

// mboxFrame wraps raw in a single mboxrd entry: a "From " separator line,
// ">"-quoting of body lines that would otherwise look like one, and a
// trailing blank line.
func mboxFrame(from string, date time.Time, raw []byte) []byte {
	if from == "" {
		from = "MAILER-DAEMON"
	}
	if date.IsZero() {
		date = time.Now()
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From %s %s\n", from, date.UTC().Format(time.ANSIC))

	for _, line := range bytes.SplitAfter(raw, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, ">"), []byte("From ")) {
			buf.WriteByte('>')
		}
		buf.Write(line)
	}
	if len(raw) > 0 && raw[len(raw)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}
