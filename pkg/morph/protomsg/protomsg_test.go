package protomsg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/lk2023060901/morph/pkg/morph"
	"github.com/lk2023060901/morph/pkg/util/merr"
)

type Audit struct {
	Actor   string                 `morph:"actor"`
	At      *timestamppb.Timestamp `morph:"at"`
	Details *structpb.Struct       `morph:"details,optional"`
}

func init() {
	MustRegister[*timestamppb.Timestamp]()
	MustRegister[*structpb.Struct]()
	morph.MustRegisterStruct[Audit]()
}

func TestMessageProperties(t *testing.T) {
	details, err := structpb.NewStruct(map[string]any{"ip": "10.0.0.1", "retries": 2})
	require.NoError(t, err)
	audit := Audit{
		Actor:   "ops",
		At:      timestamppb.New(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
		Details: details,
	}

	out, err := morph.Deflate(audit)
	require.NoError(t, err)
	tree := out.(map[string]any)
	assert.Equal(t, "2025-01-02T03:04:05Z", tree["at"])
	assert.Equal(t, "10.0.0.1", tree["details"].(map[string]any)["ip"])

	back, err := morph.InflateAs[Audit](out)
	require.NoError(t, err)
	assert.Equal(t, "ops", back.Actor)
	assert.True(t, proto.Equal(audit.At, back.At))
	assert.True(t, proto.Equal(audit.Details, back.Details))
}

func TestInvalidMessage(t *testing.T) {
	_, err := morph.InflateAs[*timestamppb.Timestamp]("yesterday")
	assert.ErrorIs(t, err, merr.ErrValueType)

	err = Register[*timestamppb.Timestamp]()
	assert.ErrorIs(t, err, merr.ErrTypeRedefined)
}
