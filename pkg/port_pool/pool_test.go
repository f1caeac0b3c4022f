package port_pool

import (
	"strings"
	"sync"
	"testing"

	"github.com/arzzra/phone_bridge/pkg/media"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortPool(t *testing.T) {
	t.Run("выделение наименьшего свободного порта", func(t *testing.T) {
		pool, err := New(10000, 10010)
		require.NoError(t, err)
		assert.Equal(t, 5, pool.Available())

		port1, err := pool.Acquire()
		require.NoError(t, err)
		assert.Equal(t, 10000, port1)

		port2, err := pool.Acquire()
		require.NoError(t, err)
		assert.Equal(t, 10002, port2)

		pool.Release(port1)
		port3, err := pool.Acquire()
		require.NoError(t, err)
		assert.Equal(t, 10000, port3, "освобожденный порт должен выдаваться первым")
	})

	t.Run("нечетное начало диапазона", func(t *testing.T) {
		pool, err := New(10001, 10006)
		require.NoError(t, err)
		assert.Equal(t, 2, pool.Available())

		port, err := pool.Acquire()
		require.NoError(t, err)
		assert.Equal(t, 10002, port)
	})

	t.Run("конец диапазона не включается", func(t *testing.T) {
		pool, err := New(10000, 10004)
		require.NoError(t, err)

		ports := []int{}
		for pool.Available() > 0 {
			port, err := pool.Acquire()
			require.NoError(t, err)
			ports = append(ports, port)
		}
		assert.Equal(t, []int{10000, 10002}, ports)
	})

	t.Run("исчерпание пула не блокирует", func(t *testing.T) {
		pool, err := New(10000, 10004)
		require.NoError(t, err)

		_, err = pool.Acquire()
		require.NoError(t, err)
		_, err = pool.Acquire()
		require.NoError(t, err)

		_, err = pool.Acquire()
		require.Error(t, err)
		assert.True(t, media.HasErrorCode(err, media.ErrorCodeResourceExhausted))
		assert.Contains(t, err.Error(), "10000")
		assert.Contains(t, err.Error(), "10004")
		assert.Equal(t, 2, pool.InUse())
	})

	t.Run("повторное освобождение", func(t *testing.T) {
		pool, err := New(10000, 10010)
		require.NoError(t, err)

		port, err := pool.Acquire()
		require.NoError(t, err)

		pool.Release(port)
		pool.Release(port)
		assert.Equal(t, 5, pool.Available())
		assert.Equal(t, 0, pool.InUse())
	})

	t.Run("освобождение чужих портов", func(t *testing.T) {
		pool, err := New(10000, 10010)
		require.NoError(t, err)

		pool.Release(9998)
		pool.Release(10001)
		pool.Release(10010)
		pool.Release(10002) // в диапазоне, но не выделен
		assert.Equal(t, 5, pool.Available())
	})

	t.Run("RTCP порт", func(t *testing.T) {
		assert.Equal(t, PortPair{RTP: 31000, RTCP: 31001}, Pair(31000))
	})
}

func TestNew_InvalidRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
	}{
		{name: "пустой диапазон", start: 31000, end: 31000},
		{name: "обратный диапазон", start: 31100, end: 31000},
		{name: "привилегированные порты", start: 80, end: 200},
		{name: "выше 65535", start: 65000, end: 70000},
		{name: "без четных портов", start: 31001, end: 31002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.end)
			require.Error(t, err)
			assert.True(t, media.HasErrorCode(err, media.ErrorCodeConfiguration))
		})
	}
}

func TestPortPool_ConcurrentAcquire(t *testing.T) {
	pool, err := New(DefaultRangeStart, DefaultRangeEnd)
	require.NoError(t, err)
	capacity := pool.Available()
	require.Equal(t, 50, capacity)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		seen   = make(map[int]int)
		failed int
	)

	// Желающих больше, чем портов: лишние должны сразу получить ошибку
	for i := 0; i < capacity+20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			port, err := pool.Acquire()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			seen[port]++
		}()
	}
	wg.Wait()

	assert.Len(t, seen, capacity)
	assert.Equal(t, 20, failed)
	for port, count := range seen {
		assert.Equal(t, 1, count, "порт %d выдан несколько раз", port)
		assert.Zero(t, port%2, "порт %d нечетный", port)
	}

	for port := range seen {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			pool.Release(p)
		}(port)
	}
	wg.Wait()
	assert.Equal(t, capacity, pool.Available())
}

func TestPortPool_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool, err := New(10000, 10010, WithRegisterer(reg))
	require.NoError(t, err)

	_, err = pool.Acquire()
	require.NoError(t, err)

	expected := `
# HELP phone_bridge_port_pool_free_ports Количество свободных RTP портов в пуле
# TYPE phone_bridge_port_pool_free_ports gauge
phone_bridge_port_pool_free_ports{range="10000-10010"} 4
# HELP phone_bridge_port_pool_in_use_ports Количество выделенных RTP портов
# TYPE phone_bridge_port_pool_in_use_ports gauge
phone_bridge_port_pool_in_use_ports{range="10000-10010"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))
}
