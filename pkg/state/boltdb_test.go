package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triadops/triad/pkg/types"
)

func testStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDeployment(name string) *types.Deployment {
	return &types.Deployment{
		ID:        "dep-1",
		Name:      name,
		Image:     "registry.example.com/app:v1",
		Endpoint:  "splitter-123.elb.example.com",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Resources: []types.ProvisionedResource{
			{
				NodeID: "datastore/filesystem",
				Kind:   types.KindFileSystem,
				Handle: types.Handle{ID: "fs-123", Attributes: map[string]string{"network_identity": "sg-1"}},
			},
			{
				NodeID: "compute/vm",
				Kind:   types.KindInstance,
				Handle: types.Handle{ID: "i-456"},
			},
		},
	}
}

func TestSaveAndGetDeployment(t *testing.T) {
	s := testStore(t)

	want := testDeployment("demo")
	require.NoError(t, s.SaveDeployment(want))

	got, err := s.GetDeployment("demo")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Creation order survives the round trip.
	require.Len(t, got.Resources, 2)
	assert.Equal(t, "datastore/filesystem", got.Resources[0].NodeID)
	assert.Equal(t, "compute/vm", got.Resources[1].NodeID)
}

func TestGetMissingDeployment(t *testing.T) {
	s := testStore(t)

	_, err := s.GetDeployment("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveIsUpsert(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.SaveDeployment(testDeployment("demo")))

	updated := testDeployment("demo")
	updated.Endpoint = "splitter-456.elb.example.com"
	require.NoError(t, s.SaveDeployment(updated))

	got, err := s.GetDeployment("demo")
	require.NoError(t, err)
	assert.Equal(t, "splitter-456.elb.example.com", got.Endpoint)

	all, err := s.ListDeployments()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteDeployment(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.SaveDeployment(testDeployment("demo")))
	require.NoError(t, s.DeleteDeployment("demo"))

	_, err := s.GetDeployment("demo")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent record is not an error.
	assert.NoError(t, s.DeleteDeployment("demo"))
}

func TestListDeployments(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.SaveDeployment(testDeployment("a")))
	require.NoError(t, s.SaveDeployment(testDeployment("b")))

	all, err := s.ListDeployments()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
