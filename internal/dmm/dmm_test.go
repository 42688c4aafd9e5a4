package dmm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInstrument answers each query with the next canned reply.
type fakeInstrument struct {
	replies  []string
	pending  bytes.Buffer
	commands []string
}

func (f *fakeInstrument) Write(b []byte) (int, error) {
	cmd := strings.TrimSpace(string(b))
	f.commands = append(f.commands, cmd)
	if strings.HasSuffix(cmd, "?") && len(f.replies) > 0 {
		f.pending.WriteString(f.replies[0] + "\n")
		f.replies = f.replies[1:]
	}
	return len(b), nil
}

func (f *fakeInstrument) Read(b []byte) (int, error) {
	return f.pending.Read(b)
}

func TestAverageCurrent(t *testing.T) {
	inst := &fakeInstrument{replies: []string{"+4.00000000E-05", "+6.00000000E-05", "+5.00000000E-05", "+5.00000000E-05"}}
	m := New(inst, 4)

	avg, err := m.AverageCurrent()
	require.NoError(t, err)
	assert.InDelta(t, 0.00005, avg, 1e-12)
	assert.Equal(t, []string{"READ?", "READ?", "READ?", "READ?"}, inst.commands)
}

func TestAverageCurrent_BadReading(t *testing.T) {
	inst := &fakeInstrument{replies: []string{"OVLD"}}
	m := New(inst, 1)

	_, err := m.AverageCurrent()
	assert.ErrorContains(t, err, "OVLD")
}

func TestAverageCurrent_Timeout(t *testing.T) {
	m := New(&fakeInstrument{}, 2)

	_, err := m.AverageCurrent()
	assert.Error(t, err)
}

func TestIdentifyAndConfigure(t *testing.T) {
	inst := &fakeInstrument{replies: []string{"KEITHLEY INSTRUMENTS INC.,MODEL 2110,8003245,02.03-03-20"}}
	m := New(inst, 10)

	idn, err := m.Identify()
	require.NoError(t, err)
	assert.Contains(t, idn, "8003245")

	require.NoError(t, m.ConfigureCurrent())
	assert.Equal(t, []string{"*IDN?", "CONF:CURR:DC AUTO"}, inst.commands)
}

func TestNew_MinimumOneSample(t *testing.T) {
	inst := &fakeInstrument{replies: []string{"1E-05"}}
	m := New(inst, 0)

	avg, err := m.AverageCurrent()
	require.NoError(t, err)
	assert.InDelta(t, 0.00001, avg, 1e-12)
}
