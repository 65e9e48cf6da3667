package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	client, err := New(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	require.NoError(t, client.Close())

	srv.Close()
	_, err = New(context.Background(), Options{Addr: addr})
	require.Error(t, err)
}
