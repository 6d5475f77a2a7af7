package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", DefaultPoolConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	if p.Name() != "test" {
		t.Errorf("池名称不匹配: 期望 test, 实际 %s", p.Name())
	}
	if p.Cap() != 4 {
		t.Errorf("池容量不匹配: 期望 4, 实际 %d", p.Cap())
	}
}

func TestNewPool_InvalidCapacity(t *testing.T) {
	_, err := NewPool("test", &Config{Capacity: 0})
	if !errors.Is(err, ErrInvalidPoolConfig) {
		t.Fatalf("期望 ErrInvalidPoolConfig, 实际: %v", err)
	}
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: 5 * time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}); err != nil {
			t.Errorf("提交任务失败: %v", err)
			wg.Done()
		}
	}
	wg.Wait()

	if counter.Load() != 100 {
		t.Errorf("任务执行数不匹配: 期望 100, 实际 %d", counter.Load())
	}
}

func TestPoolSubmitWithContext_Canceled(t *testing.T) {
	p, err := NewPool("test", DefaultPoolConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.SubmitWithContext(ctx, func() {
		t.Error("已取消的上下文不应执行任务")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled 错误, 实际: %v", err)
	}
}

func TestPoolRun_AllTasks(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 3, ExpiryDuration: time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	results := make([]int, 20)
	err = p.Run(context.Background(), len(results), func(_ context.Context, i int) error {
		results[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}
	for i, v := range results {
		if v != i*i {
			t.Errorf("results[%d] = %d, 期望 %d", i, v, i*i)
		}
	}
}

func TestPoolRun_FirstErrorCancels(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 1, ExpiryDuration: time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	boom := errors.New("boom")
	var ran atomic.Int32
	err = p.Run(context.Background(), 10, func(ctx context.Context, i int) error {
		ran.Add(1)
		if i == 0 {
			return boom
		}
		return ctx.Err()
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望 boom, 实际: %v", err)
	}
	if ran.Load() == 10 {
		t.Error("第一个错误之后不应继续执行全部任务")
	}
}

func TestPoolRun_PanicBecomesError(t *testing.T) {
	p, err := NewPool("test", DefaultPoolConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	err = p.Run(context.Background(), 1, func(context.Context, int) error {
		panic("测试 panic")
	})
	if err == nil {
		t.Fatal("panic 应转为错误")
	}
}

func TestPoolRelease(t *testing.T) {
	p, err := NewPool("test", DefaultPoolConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	p.Release()
	p.Release()

	if err := p.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("期望 ErrPoolClosed, 实际: %v", err)
	}
}
