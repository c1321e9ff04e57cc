package obslog_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/wasmrun/gojshost/internal/obslog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	return fields
}

func TestNew_WritesJSONAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := obslog.New(&buf, logrus.DebugLevel)

	log.Debug("hello")

	fields := decodeLine(t, &buf)
	require.Equal(t, "hello", fields["msg"])
	require.Equal(t, "debug", fields["level"])
}

func TestGuestExit_LogsRunIDAndExitCode(t *testing.T) {
	var buf bytes.Buffer
	log := obslog.New(&buf, logrus.InfoLevel)

	obslog.GuestExit(log, "run-1", 3)

	fields := decodeLine(t, &buf)
	require.Equal(t, "run-1", fields["runID"])
	require.EqualValues(t, 3, fields["exitCode"])
	require.Equal(t, "guest module exited", fields["msg"])
}

func TestTimerMisbehavior_LogsTimerID(t *testing.T) {
	var buf bytes.Buffer
	log := obslog.New(&buf, logrus.InfoLevel)

	obslog.TimerMisbehavior(log, "run-2", 7)

	fields := decodeLine(t, &buf)
	require.Equal(t, "run-2", fields["runID"])
	require.EqualValues(t, 7, fields["timerID"])
}

func TestStubHit_DoesNotLogBelowDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := obslog.New(&buf, logrus.InfoLevel)

	obslog.StubHit(log, "run-3", "fs.open", 1)

	require.Empty(t, buf.String())
}

func TestStubHit_LogsSyscallNameAndTotalHits(t *testing.T) {
	var buf bytes.Buffer
	log := obslog.New(&buf, logrus.DebugLevel)

	obslog.StubHit(log, "run-3", "fs.open", 4)

	fields := decodeLine(t, &buf)
	require.Equal(t, "fs.open", fields["syscall"])
	require.EqualValues(t, 4, fields["totalHits"])
}

func TestFuncWrapperCollision_LogsBothCallbackIDs(t *testing.T) {
	var buf bytes.Buffer
	log := obslog.New(&buf, logrus.InfoLevel)

	obslog.FuncWrapperCollision(log, "run-4", 9, 2)

	fields := decodeLine(t, &buf)
	require.EqualValues(t, 9, fields["callbackID"])
	require.EqualValues(t, 2, fields["collidingWithID"])
}
