package memory

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BestFit", func() {
	var (
		bf *BestFit
	)

	BeforeEach(func() {
		bf = NewBestFit(DefaultCapacity)
	})

	AfterEach(func() {
		Expect(bf.list.Validate()).To(Succeed())
	})

	It("should start with a single hole", func() {
		Expect(bf.Regions()).To(Equal([]Region{
			{Kind: Hole, Start: 0, Length: 2048},
		}))
	})

	It("should occupy the whole space without leaving a hole", func() {
		a, ok := bf.Allocate(2048)

		Expect(ok).To(BeTrue())
		Expect(a.Start()).To(Equal(0))
		Expect(a.Length()).To(Equal(2048))
		Expect(bf.Regions()).To(Equal([]Region{
			{Kind: Occupied, Start: 0, Length: 2048},
		}))
	})

	It("should split the hole behind the allocation", func() {
		a, _ := bf.Allocate(100)
		b, _ := bf.Allocate(50)

		Expect(a.Start()).To(Equal(0))
		Expect(b.Start()).To(Equal(100))
		Expect(bf.Regions()).To(Equal([]Region{
			{Kind: Occupied, Start: 0, Length: 100},
			{Kind: Occupied, Start: 100, Length: 50},
			{Kind: Hole, Start: 150, Length: 1898},
		}))
	})

	It("should merge released regions back into one hole", func() {
		a, _ := bf.Allocate(100)
		b, _ := bf.Allocate(50)

		bf.Release(a)
		Expect(bf.Regions()).To(Equal([]Region{
			{Kind: Hole, Start: 0, Length: 100},
			{Kind: Occupied, Start: 100, Length: 50},
			{Kind: Hole, Start: 150, Length: 1898},
		}))

		bf.Release(b)
		Expect(bf.Regions()).To(Equal([]Region{
			{Kind: Hole, Start: 0, Length: 2048},
		}))
	})

	It("should restore the single hole after an allocate and release", func() {
		a, _ := bf.Allocate(321)
		bf.Release(a)

		Expect(bf.Regions()).To(Equal([]Region{
			{Kind: Hole, Start: 0, Length: 2048},
		}))
		Expect(bf.list.Len()).To(Equal(1))
	})

	It("should pick the smallest sufficient hole", func() {
		a, _ := bf.Allocate(300)
		_, _ = bf.Allocate(10)
		c, _ := bf.Allocate(100)
		_, _ = bf.Allocate(10)
		bf.Release(a)
		bf.Release(c)

		d, ok := bf.Allocate(90)

		Expect(ok).To(BeTrue())
		Expect(d.Start()).To(Equal(310))
		Expect(bf.Regions()[2:4]).To(Equal([]Region{
			{Kind: Occupied, Start: 310, Length: 90},
			{Kind: Hole, Start: 400, Length: 10},
		}))
	})

	It("should pick the lowest address among equally small holes", func() {
		a, _ := bf.Allocate(100)
		_, _ = bf.Allocate(10)
		c, _ := bf.Allocate(100)
		_, _ = bf.Allocate(10)
		bf.Release(c)
		bf.Release(a)

		d, ok := bf.Allocate(100)

		Expect(ok).To(BeTrue())
		Expect(d.Start()).To(Equal(0))
	})

	It("should refuse when no hole is large enough", func() {
		_, _ = bf.Allocate(2000)

		a, ok := bf.Allocate(49)

		Expect(ok).To(BeFalse())
		Expect(a).To(BeNil())
	})

	It("should panic when an allocation is released twice", func() {
		a, _ := bf.Allocate(10)
		bf.Release(a)

		Expect(func() { bf.Release(a) }).To(Panic())
	})

	It("should ignore a nil allocation", func() {
		Expect(func() { bf.Release(nil) }).NotTo(Panic())
	})
})

var _ = Describe("Infinite", func() {
	It("should admit everything without addresses", func() {
		inf := NewInfinite()

		a, ok := inf.Allocate(1 << 30)

		Expect(ok).To(BeTrue())
		Expect(a).To(BeNil())
		Expect(func() { inf.Release(a) }).NotTo(Panic())
	})
})

var _ = Describe("NewStrategy", func() {
	It("should build strategies by name", func() {
		s, err := NewStrategy("best-fit", 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Name()).To(Equal(StrategyBestFit))
		Expect(s.(AddressSpace).Capacity()).To(Equal(64))

		s, err = NewStrategy("infinite", 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&Infinite{}))
	})

	It("should reject unknown names", func() {
		_, err := NewStrategy("first-fit", 64)

		Expect(err).To(MatchError(ErrUnknownStrategy))
	})
})
