package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingCloser struct {
	name  string
	order *[]string
	err   error
}

func (c recordingCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func stubExit(t *testing.T) *int {
	code := -1
	orig := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		exit = orig
		closers = nil
	})
	return &code
}

func TestShutdown_ReleasesInReverse(t *testing.T) {
	code := stubExit(t)
	var order []string
	Register(recordingCloser{name: "db", order: &order})
	Register(recordingCloser{name: "rig", order: &order, err: errors.New("port busy")})

	Shutdown()

	assert.Equal(t, []string{"rig", "db"}, order)
	assert.Equal(t, 0, *code)
}

func TestShutdownWithError_ExitsNonZero(t *testing.T) {
	code := stubExit(t)
	var order []string
	Register(recordingCloser{name: "rig", order: &order})

	ShutdownWithError(errors.New("laser timeout"), "Scene suite aborted")

	assert.Equal(t, []string{"rig"}, order)
	assert.Equal(t, 1, *code)
}

func TestRelease_ClearsClosers(t *testing.T) {
	stubExit(t)
	var order []string
	Register(recordingCloser{name: "db", order: &order})

	Release()
	Release()

	assert.Equal(t, []string{"db"}, order)
}
