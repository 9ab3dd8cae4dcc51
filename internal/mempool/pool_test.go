package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 1024},
		{0, 1024},
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{4 * 28 * 28, 4096},
		{10000, 10240},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.in), "sizeClass(%d)", tt.in)
	}
}

func TestGetFloat32_LengthAndZeroed(t *testing.T) {
	buf := GetFloat32(3000)
	require.Len(t, buf, 3000)
	assert.Equal(t, 3072, cap(buf))
	for i := range buf {
		buf[i] = 1
	}
	PutFloat32(buf)

	again := GetFloat32(2500)
	require.Len(t, again, 2500)
	for i, v := range again {
		if v != 0 {
			t.Fatalf("index %d not cleared: %v", i, v)
		}
	}
	PutFloat32(again)
}

func TestGetFloat32_Negative(t *testing.T) {
	buf := GetFloat32(-5)
	assert.Empty(t, buf)
	PutFloat32(buf)
}

func TestPutFloat32_IgnoresForeign(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutFloat32(make([]float32, 10))
		PutFloat32(make([]float32, 1500))
	})
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 200 {
				n := 100 + (g*37+i)%5000
				buf := GetFloat32(n)
				if len(buf) != n {
					t.Errorf("len %d, want %d", len(buf), n)
					return
				}
				buf[n-1] = float32(g)
				PutFloat32(buf)
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkGetPut(b *testing.B) {
	for b.Loop() {
		PutFloat32(GetFloat32(4 * 3 * 48 * 32))
	}
}
