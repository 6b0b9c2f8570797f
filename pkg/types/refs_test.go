package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRefs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Reference
	}{
		{
			name: "no tokens",
			in:   "mount -t efs fs-123:/ /mnt/app",
			want: nil,
		},
		{
			name: "single token",
			in:   Ref("datastore/filesystem", AttrID),
			want: []Reference{{NodeID: "datastore/filesystem", Attribute: "id"}},
		},
		{
			name: "embedded tokens",
			in: "mount -t efs -o tls,accesspoint=" +
				Ref("datastore/access-point", AttrID) + " " +
				Ref("datastore/filesystem", AttrID) + ":/ /mnt/app",
			want: []Reference{
				{NodeID: "datastore/access-point", Attribute: "id"},
				{NodeID: "datastore/filesystem", Attribute: "id"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRefs(tt.in))
		})
	}
}

func TestSubstituteRefs(t *testing.T) {
	values := map[Reference]string{
		{NodeID: "a", Attribute: "id"}: "fs-1",
		{NodeID: "b", Attribute: "id"}: "ap-2",
	}
	lookup := func(ref Reference) (string, error) {
		v, ok := values[ref]
		if !ok {
			return "", errors.New("unknown reference")
		}
		return v, nil
	}

	out, err := SubstituteRefs("x="+Ref("a", "id")+" y="+Ref("b", "id"), lookup)
	require.NoError(t, err)
	assert.Equal(t, "x=fs-1 y=ap-2", out)

	// A string without tokens passes through untouched.
	out, err = SubstituteRefs("plain", lookup)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	// The first unsatisfiable reference fails the whole substitution.
	_, err = SubstituteRefs(Ref("a", "id")+" "+Ref("ghost", "id"), lookup)
	assert.Error(t, err)
}

func TestRefRoundTrip(t *testing.T) {
	token := Ref("compute/vm", AttrNetworkIdentity)
	refs := ParseRefs(token)
	require.Len(t, refs, 1)
	assert.Equal(t, token, refs[0].String())
}

func TestListenerSpecValidate(t *testing.T) {
	base := func() *ListenerSpec {
		return &ListenerSpec{
			LoadBalancerID: Ref("balancer/lb", AttrID),
			Port:           80,
			Protocol:       "HTTP",
			Forward: []WeightedTarget{
				{TargetGroupID: "tg-a", Weight: 1},
				{TargetGroupID: "tg-b", Weight: 0},
			},
		}
	}

	assert.NoError(t, base().Validate())

	spec := base()
	spec.Forward = nil
	assert.Error(t, spec.Validate())

	spec = base()
	spec.Forward[0].Weight = -1
	assert.Error(t, spec.Validate())

	// All weights zero means the splitter routes nothing.
	spec = base()
	spec.Forward[0].Weight = 0
	assert.Error(t, spec.Validate())
}

func TestHandleAttr(t *testing.T) {
	h := &Handle{
		ID:         "fs-123",
		Attributes: map[string]string{AttrNetworkIdentity: "sg-1"},
	}

	id, ok := h.Attr(AttrID)
	assert.True(t, ok)
	assert.Equal(t, "fs-123", id)

	sg, ok := h.Attr(AttrNetworkIdentity)
	assert.True(t, ok)
	assert.Equal(t, "sg-1", sg)

	_, ok = h.Attr(AttrDNSName)
	assert.False(t, ok)
}
