package ingestion

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"PaymentsEngine/internal/testutil"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSPublisher_RoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const subject = "payments.snapshots.test"
	pub, err := ConnectNATS(ctx, testutil.TestNATSURL(), subject, zerolog.Nop())
	if err != nil {
		t.Skipf("test nats not available: %v", err)
	}
	defer pub.Close()

	snap := testSnapshot()
	snap.RunID = uuid.New()
	require.NoError(t, pub.Export(ctx, snap))
	// same run id: deduplicated by the server, still not an error
	require.NoError(t, pub.Export(ctx, snap))

	nc, err := nats.Connect(testutil.TestNATSURL())
	require.NoError(t, err)
	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	stream, err := js.Stream(ctx, SnapshotStreamName)
	require.NoError(t, err)

	msg, err := stream.GetLastMsgForSubject(ctx, subject)
	require.NoError(t, err)

	var got SnapshotMessage
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, snap.RunID.String(), got.RunID)
	assert.Equal(t, snap.StateHashHex(), got.StateHash)
	assert.Equal(t, snap.Accounts, got.Accounts)
}
