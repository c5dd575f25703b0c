package confirm_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sellsync/sellsync/internal/client"
	"github.com/sellsync/sellsync/internal/confirm"
	"github.com/sellsync/sellsync/internal/observability"
)

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []string
	failKeys  map[string]bool
	rejectKey string
	block     chan struct{} // when set, submissions block until closed
}

func (f *fakeSubmitter) SubmitQueueItem(ctx context.Context, itemKey string) (*client.SubmitResult, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, itemKey)
	block := f.block
	fail := f.failKeys[itemKey]
	reject := f.rejectKey == itemKey
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail {
		return nil, &client.NetworkError{Op: "submit", Err: errors.New("backend unreachable")}
	}
	if reject {
		return &client.SubmitResult{Success: false, Message: "item no longer eligible"}, nil
	}

	return &client.SubmitResult{Success: true, Message: "submitted"}, nil
}

func (f *fakeSubmitter) submittedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.submitted...)
}

var _ = Describe("Confirmation Queue", func() {
	var (
		submitter *fakeSubmitter
		summaries []confirm.Summary
		queue     *confirm.Queue
		ctx       context.Context
	)

	items := func(keys ...string) []confirm.Item {
		out := make([]confirm.Item, 0, len(keys))
		for _, key := range keys {
			out = append(out, confirm.Item{Key: key})
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		submitter = &fakeSubmitter{failKeys: map[string]bool{}}
		summaries = nil
		queue = confirm.New(confirm.Config{
			Submitter: submitter,
			Logger:    observability.NewLogger("test"),
			OnSummary: func(s confirm.Summary) { summaries = append(summaries, s) },
		})
	})

	Describe("Begin", func() {
		It("rejects an empty item list and stays idle", func() {
			err := queue.Begin(nil)

			var validation *client.ValidationError
			Expect(errors.As(err, &validation)).To(BeTrue())
			Expect(queue.Snapshot().State).To(Equal(confirm.StateIdle))
		})

		It("arms the queue at the first item", func() {
			Expect(queue.Begin(items("a", "b"))).To(Succeed())

			snapshot := queue.Snapshot()
			Expect(snapshot.State).To(Equal(confirm.StateActive))
			Expect(snapshot.Cursor).To(Equal(0))
			Expect(snapshot.Current.Key).To(Equal("a"))
		})

		It("rejects Begin while a walk is active", func() {
			Expect(queue.Begin(items("a"))).To(Succeed())
			Expect(queue.Begin(items("b"))).To(HaveOccurred())
		})
	})

	Describe("walking the queue", func() {
		It("ends exhausted with the expected counters", func() {
			// Begin([A,B,C]); confirm; skip; confirm.
			Expect(queue.Begin(items("A", "B", "C"))).To(Succeed())
			Expect(queue.ConfirmCurrent(ctx)).To(Succeed())
			Expect(queue.SkipCurrent()).To(Succeed())
			Expect(queue.ConfirmCurrent(ctx)).To(Succeed())

			snapshot := queue.Snapshot()
			Expect(snapshot.State).To(Equal(confirm.StateExhausted))
			Expect(snapshot.Confirmed).To(Equal(2))
			Expect(snapshot.Skipped).To(Equal(1))
			Expect(snapshot.Cursor).To(Equal(3))

			Expect(submitter.submittedKeys()).To(Equal([]string{"A", "C"}))
		})

		It("emits the summary exactly once", func() {
			Expect(queue.Begin(items("A"))).To(Succeed())
			Expect(queue.ConfirmCurrent(ctx)).To(Succeed())

			Expect(summaries).To(HaveLen(1))
			Expect(summaries[0]).To(Equal(confirm.Summary{Confirmed: 1, Total: 1}))

			// Further decisions fail and emit nothing more.
			Expect(queue.SkipCurrent()).To(HaveOccurred())
			Expect(summaries).To(HaveLen(1))
		})

		It("advances past a failed submission instead of retrying in place", func() {
			submitter.failKeys["B"] = true

			Expect(queue.Begin(items("A", "B", "C"))).To(Succeed())
			Expect(queue.ConfirmCurrent(ctx)).To(Succeed())
			Expect(queue.ConfirmCurrent(ctx)).To(HaveOccurred())
			Expect(queue.ConfirmCurrent(ctx)).To(Succeed())

			snapshot := queue.Snapshot()
			Expect(snapshot.State).To(Equal(confirm.StateExhausted))
			Expect(snapshot.Confirmed).To(Equal(2))
			Expect(snapshot.Failed).To(Equal(1))
		})

		It("treats a backend rejection like a failure and keeps walking", func() {
			submitter.rejectKey = "A"

			Expect(queue.Begin(items("A", "B"))).To(Succeed())
			Expect(queue.ConfirmCurrent(ctx)).To(HaveOccurred())
			Expect(queue.ConfirmCurrent(ctx)).To(Succeed())

			Expect(queue.Snapshot().State).To(Equal(confirm.StateExhausted))
		})

		It("skips without any backend call", func() {
			Expect(queue.Begin(items("A"))).To(Succeed())
			Expect(queue.SkipCurrent()).To(Succeed())

			Expect(submitter.submittedKeys()).To(BeEmpty())
			Expect(queue.Snapshot().Skipped).To(Equal(1))
		})
	})

	Describe("Abort", func() {
		It("discards remaining items but preserves recorded counts", func() {
			Expect(queue.Begin(items("A", "B", "C"))).To(Succeed())
			Expect(queue.ConfirmCurrent(ctx)).To(Succeed())
			Expect(queue.Abort()).To(Succeed())

			snapshot := queue.Snapshot()
			Expect(snapshot.State).To(Equal(confirm.StateAborted))
			Expect(snapshot.Confirmed).To(Equal(1))

			Expect(summaries).To(HaveLen(1))
			Expect(summaries[0].Confirmed).To(Equal(1))
			Expect(summaries[0].Total).To(Equal(3))
		})

		It("is invalid outside the active state", func() {
			Expect(queue.Abort()).To(HaveOccurred())
		})

		It("stays aborted and drops the result of an in-flight confirmation", func() {
			submitter.block = make(chan struct{})

			Expect(queue.Begin(items("A"))).To(Succeed())

			firstDone := make(chan error, 1)
			go func() {
				firstDone <- queue.ConfirmCurrent(ctx)
			}()

			Eventually(submitter.submittedKeys).Should(HaveLen(1))

			Expect(queue.Abort()).To(Succeed())

			close(submitter.block)
			Eventually(firstDone).Should(Receive(BeNil()))

			snapshot := queue.Snapshot()
			Expect(snapshot.State).To(Equal(confirm.StateAborted))
			Expect(snapshot.Confirmed).To(Equal(0))

			Expect(summaries).To(HaveLen(1))
			Expect(summaries[0]).To(Equal(confirm.Summary{Total: 1}))
		})
	})

	Describe("decision concurrency", func() {
		It("rejects a second decision while one is in flight", func() {
			submitter.block = make(chan struct{})

			Expect(queue.Begin(items("A", "B"))).To(Succeed())

			firstDone := make(chan error, 1)
			go func() {
				firstDone <- queue.ConfirmCurrent(ctx)
			}()

			Eventually(submitter.submittedKeys).Should(HaveLen(1))

			var validation *client.ValidationError
			Expect(errors.As(queue.SkipCurrent(), &validation)).To(BeTrue())
			Expect(errors.As(queue.ConfirmCurrent(ctx), &validation)).To(BeTrue())

			close(submitter.block)
			Eventually(firstDone).Should(Receive(BeNil()))

			Expect(queue.Snapshot().Cursor).To(Equal(1))
		})
	})

	Describe("reuse after a finished walk", func() {
		It("allows Begin again once exhausted", func() {
			Expect(queue.Begin(items("A"))).To(Succeed())
			Expect(queue.ConfirmCurrent(ctx)).To(Succeed())

			Expect(queue.Begin(items("B"))).To(Succeed())
			snapshot := queue.Snapshot()
			Expect(snapshot.State).To(Equal(confirm.StateActive))
			Expect(snapshot.Confirmed).To(Equal(0))
		})
	})
})
