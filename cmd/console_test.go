package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/agent"
	"github.com/xkilldash9x/uilink/internal/observability"
)

type mockAgent struct {
	mock.Mock
}

func (m *mockAgent) Ping() bool {
	return m.Called().Bool(0)
}

func (m *mockAgent) Scan(ctx context.Context) ([]schemas.ElementRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]schemas.ElementRecord)
	return records, args.Error(1)
}

func (m *mockAgent) Status() agent.Status {
	return m.Called().Get(0).(agent.Status)
}

func TestAgentConsole(t *testing.T) {
	a := new(mockAgent)
	a.On("Ping").Return(true).Once()
	a.On("Ping").Return(false).Once()
	a.On("Scan", mock.Anything).Return([]schemas.ElementRecord{{Role: "button.send", Selector: "#send"}}, nil).Once()
	a.On("Scan", mock.Anything).Return(nil, errors.New("page gone")).Once()
	a.On("Status").Return(agent.Status{Connected: true, Attempts: 0, State: "OPEN", ChannelState: "OPEN"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	in := "ping\nping\n\nscan\nscan\nstatus\nhelp\nfrobnicate\nexit\nping\n"
	err := runConsole(ctx, strings.NewReader(in), &out, "> ", agentConsole(a, &out))
	require.ErrorIs(t, err, errQuit)

	text := out.String()
	assert.Contains(t, text, "ping sent\n")
	assert.Contains(t, text, "not connected; ping not sent\n")
	assert.Contains(t, text, `"selector": "#send"`)
	assert.Contains(t, text, "error: page gone\n")
	assert.Contains(t, text, `"channelState": "OPEN"`)
	assert.Contains(t, text, agentConsoleHelp)
	assert.Contains(t, text, `error: unknown command "frobnicate" (try help)`)
	// The ping after exit is never read.
	a.AssertNumberOfCalls(t, "Ping", 2)
	a.AssertExpectations(t)
}

func TestAgentConsoleLevel(t *testing.T) {
	previous := observability.Level()
	defer func() { require.NoError(t, observability.SetLevel(previous.String())) }()
	require.NoError(t, observability.SetLevel("info"))

	var out bytes.Buffer
	in := "level\nlevel DEBUG\nlevel loud\nlevel\n"
	err := runConsole(context.Background(), strings.NewReader(in), &out, "", agentConsole(new(mockAgent), &out))
	require.NoError(t, err)

	assert.Equal(t, zapcore.DebugLevel, observability.Level())
	text := out.String()
	assert.Contains(t, text, "log level: info\n")
	assert.Equal(t, 2, strings.Count(text, "log level: debug\n"), "set and then read back")
	assert.Contains(t, text, `error: unknown log level "loud"`)
}

func TestConsoleEOFIsNotQuit(t *testing.T) {
	defer goleak.VerifyNone(t)
	called := false
	err := runConsole(context.Background(), strings.NewReader("status"), io.Discard, "", func(context.Context, string) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called, "a final line without newline is still handled")
}

func TestConsoleStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runConsole(ctx, pr, io.Discard, "", func(context.Context, string) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("console did not stop")
	}
	// Unblocks the reader goroutine.
	pw.Close()
}

func TestPrintJSON(t *testing.T) {
	var compact, pretty bytes.Buffer
	v := map[string]int{"a": 1}
	require.NoError(t, printJSON(&compact, v, false))
	require.NoError(t, printJSON(&pretty, v, true))
	assert.Equal(t, "{\"a\":1}\n", compact.String())
	assert.Equal(t, "{\n  \"a\": 1\n}\n", pretty.String())

	var back map[string]int
	require.NoError(t, json.Unmarshal(pretty.Bytes(), &back))
	assert.Equal(t, v, back)
}
