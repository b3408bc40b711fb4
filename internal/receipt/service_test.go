package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ocr/internal/classify"
	"github.com/zombor/receipt-ocr/internal/ocr"
)

// mockStore is a mock implementation of Store
type mockStore struct {
	months    map[string][]Row
	addErr    error
	listErr   error
	deleteErr error
}

func newMockStore() *mockStore {
	return &mockStore{months: make(map[string][]Row)}
}

func (m *mockStore) AddRows(month string, rows []Row) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.months[month] = append(m.months[month], rows...)
	return nil
}

func (m *mockStore) ListRows(month string) ([]Row, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Row{}, m.months[month]...), nil
}

func (m *mockStore) DeleteRegistration(month, registeredAt string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	var kept []Row
	for _, r := range m.months[month] {
		if r.RegisteredAt != registeredAt {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(m.months[month]) {
		return ErrNotFound
	}
	m.months[month] = kept
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

// mockRecognizer returns canned words
type mockRecognizer struct {
	mu      sync.Mutex
	words   []ocr.WordBox
	err     error
	calls   int
	gate    chan struct{}
	started chan struct{}
}

func newMockRecognizer(words []ocr.WordBox) *mockRecognizer {
	return &mockRecognizer{words: words}
}

func (m *mockRecognizer) Recognize(ctx context.Context, png []byte) ([]ocr.WordBox, error) {
	m.mu.Lock()
	m.calls++
	gate, started := m.gate, m.started
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.words, nil
}

func (m *mockRecognizer) Close() error {
	return nil
}

// mockStorage is a mock implementation of Storage
type mockStorage struct {
	files     map[string][]byte
	saveErr   error
	deleteErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(filename string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.files[filename] = data
	return filename, nil
}

func (m *mockStorage) Get(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *mockStorage) Delete(path string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.files[path]; !ok {
		return ErrNotFound
	}
	delete(m.files, path)
	return nil
}

// mockIDGenerator hands out sequential ids
type mockIDGenerator struct {
	n int
}

func (g *mockIDGenerator) Generate() string {
	g.n++
	return fmt.Sprintf("session-%d", g.n)
}

// mockTimeSource returns a fixed time
type mockTimeSource struct {
	now time.Time
}

func (t *mockTimeSource) Now() time.Time {
	return t.now
}

var _ = Describe("Service", func() {
	var (
		store      *mockStore
		recognizer *mockRecognizer
		storage    *mockStorage
		clock      *mockTimeSource
		service    *Service
		photoData  []byte
	)

	BeforeEach(func() {
		store = newMockStore()
		recognizer = newMockRecognizer(append(shopWords(0, 0), shopWords(1000, 0)...))
		storage = newMockStorage()
		clock = &mockTimeSource{now: time.Date(2024, 2, 1, 13, 4, 5, 0, time.UTC)}
		service = NewServiceWithDeps(store, recognizer, storage, NewAnalyzer(DefaultProfile()), &mockIDGenerator{}, clock)
		photoData = pngBytes(photo(1300, 200))
	})

	process := func() *SessionView {
		view, err := service.ProcessPhoto(context.Background(), "IMG 0001 (copy).png", photoData, "image/png")
		Expect(err).NotTo(HaveOccurred())
		return view
	}

	Describe("ProcessPhoto", func() {
		It("should open a session with one region per receipt", func() {
			view := process()
			Expect(view.ID).To(Equal("session-1"))
			Expect(view.CreatedAt).To(Equal(clock.now))
			Expect(view.Regions).To(HaveLen(2))
			Expect(view.Regions[0].Record.ShopName).To(Equal("ABC店"))
			Expect(view.Regions[0].Total).To(Equal(350))
			Expect(view.Regions[0].HasImage).To(BeTrue())
		})

		It("should store the photo under a sanitized name", func() {
			process()
			Expect(storage.files).To(HaveKey("session-1_IMG 0001 copy.png"))
		})

		It("should label every word in the view", func() {
			view := process()
			Expect(view.Regions[0].Lines[0][0].Text).To(Equal("ABC店"))
			Expect(view.Regions[0].Lines[0][0].Label).To(Equal(classify.ShopName))
		})

		When("the recognizer fails", func() {
			BeforeEach(func() {
				recognizer.err = errors.New("quota exceeded")
			})

			It("should return the error and remove the photo", func() {
				_, err := service.ProcessPhoto(context.Background(), "a.png", photoData, "image/png")
				Expect(err).To(MatchError(ContainSubstring("quota exceeded")))
				Expect(storage.files).To(BeEmpty())
			})
		})

		When("the upload is not an image", func() {
			It("should return an error and remove the file", func() {
				_, err := service.ProcessPhoto(context.Background(), "a.jpg", []byte("nope"), "image/jpeg")
				Expect(err).To(HaveOccurred())
				Expect(storage.files).To(BeEmpty())
				Expect(recognizer.calls).To(Equal(0))
			})
		})

		When("saving the photo fails", func() {
			BeforeEach(func() {
				storage.saveErr = errors.New("disk full")
			})

			It("should return the error", func() {
				_, err := service.ProcessPhoto(context.Background(), "a.png", photoData, "image/png")
				Expect(err).To(MatchError(ContainSubstring("disk full")))
			})
		})
	})

	Describe("Session", func() {
		It("should return ErrNotFound for an unknown session", func() {
			_, err := service.Session("nope")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should return a processed session", func() {
			process()
			view, err := service.Session("session-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Regions).To(HaveLen(2))
		})
	})

	Describe("DeleteSession", func() {
		It("should forget the session and its photo", func() {
			process()
			Expect(service.DeleteSession("session-1")).To(Succeed())
			Expect(storage.files).To(BeEmpty())
			_, err := service.Session("session-1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should succeed even if the photo is already gone", func() {
			process()
			storage.deleteErr = errors.New("gone")
			Expect(service.DeleteSession("session-1")).To(Succeed())
		})

		It("should return ErrNotFound for an unknown session", func() {
			Expect(service.DeleteSession("nope")).To(MatchError(ErrNotFound))
		})
	})

	Describe("Photo", func() {
		It("should return the stored upload", func() {
			process()
			data, name, err := service.Photo("session-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(photoData))
			Expect(name).To(Equal("session-1_IMG 0001 copy.png"))
		})

		It("should return Not Found once the file is gone", func() {
			process()
			delete(storage.files, "session-1_IMG 0001 copy.png")
			_, _, err := service.Photo("session-1")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("focus and step-by-step editing", func() {
		It("should move focus in both directions", func() {
			process()
			view, err := service.MoveFocus("session-1", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Focus).To(Equal(1))
			view, err = service.MoveFocus("session-1", -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Focus).To(Equal(0))
		})

		It("should report the pending edit and apply it to the focused receipt", func() {
			process()
			_, err := service.MoveFocus("session-1", 1)
			Expect(err).NotTo(HaveOccurred())

			view, err := service.BeginEdit("session-1", Editing{Field: FieldDate, Index: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Editing).To(Equal(&EditingView{Field: "date", Index: 1}))

			view, err = service.ConfirmEdit("session-1", "14")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Editing).To(BeNil())
			Expect(view.Regions[1].Record.Date.Month).To(Equal(12))
			Expect(view.Regions[0].Record.Date.Month).To(Equal(1))
		})

		It("should drop the pending edit on cancel", func() {
			process()
			_, err := service.BeginEdit("session-1", Editing{Field: FieldShopName})
			Expect(err).NotTo(HaveOccurred())
			view, err := service.CancelEdit("session-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Editing).To(BeNil())

			_, err = service.ConfirmEdit("session-1", "x")
			Expect(err).To(MatchError(ErrEditTarget))
		})

		It("should return Not Found for an unknown session", func() {
			_, err := service.MoveFocus("missing", 1)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("RegionImage", func() {
		It("should return the crop as PNG", func() {
			process()
			data, err := service.RegionImage("session-1", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(data[:4]).To(Equal([]byte("\x89PNG")))
		})

		It("should reject an unknown receipt", func() {
			process()
			_, err := service.RegionImage("session-1", 2)
			Expect(err).To(MatchError(ErrRegionIndex))
		})
	})

	Describe("SetLabel", func() {
		It("should relabel the word and rebuild the record", func() {
			process()
			view, err := service.SetLabel("session-1", 0, 0, 0, classify.Ignore)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Lines[0][0].Label).To(Equal(classify.Ignore))
			Expect(view.Edited).To(HaveLen(1))
			Expect(view.Record.ShopName).To(BeEmpty())
		})

		It("should reject an unknown word", func() {
			process()
			_, err := service.SetLabel("session-1", 0, 0, 9, classify.Ignore)
			Expect(err).To(MatchError(ErrWordIndex))
		})
	})

	Describe("Edit", func() {
		It("should focus the receipt and apply the edit", func() {
			process()
			view, err := service.Edit("session-1", 1, Editing{Field: FieldPrice, Index: 0}, "99")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Index).To(Equal(1))
			Expect(view.Record.Items[0].Price).To(Equal(99))

			session, err := service.Session("session-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Focus).To(Equal(1))
			Expect(session.Regions[0].Record.Items[0].Price).To(Equal(150))
		})

		It("should reject a bad target", func() {
			process()
			_, err := service.Edit("session-1", 0, Editing{Field: FieldItemName, Index: 7}, "x")
			Expect(err).To(MatchError(ErrEditTarget))
		})
	})

	Describe("SetItemHidden", func() {
		It("should hide the item", func() {
			process()
			view, err := service.SetItemHidden("session-1", 0, 1, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Record.Items[1].Hidden).To(BeTrue())
			Expect(view.Total).To(Equal(150))
		})
	})

	Describe("Retry", func() {
		It("should replace the receipt with the re-read one", func() {
			process()
			recognizer.words = []ocr.WordBox{
				at(10, 10, "XYZ店"),
				at(10, 40, "2024/3/4"),
				at(10, 70, "パン"), at(110, 70, "*¥210"),
			}
			view, err := service.Retry(context.Background(), "session-1", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Record.ShopName).To(Equal("XYZ店"))
			Expect(view.Record.Items).To(HaveLen(1))

			session, _ := service.Session("session-1")
			Expect(session.Regions[1].Record.ShopName).To(Equal("XYZ店"))
			Expect(session.Regions[0].Record.ShopName).To(Equal("ABC店"))
		})

		It("should keep the receipt when the recognizer fails", func() {
			process()
			recognizer.err = errors.New("offline")
			_, err := service.Retry(context.Background(), "session-1", 0)
			Expect(err).To(MatchError(ContainSubstring("offline")))

			session, _ := service.Session("session-1")
			Expect(session.Regions[0].Record.ShopName).To(Equal("ABC店"))
		})

		It("should refuse a second OCR call while one is outstanding", func() {
			process()
			recognizer.gate = make(chan struct{})
			recognizer.started = make(chan struct{}, 1)

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := service.Retry(context.Background(), "session-1", 0)
				done <- err
			}()
			Eventually(recognizer.started).Should(Receive())

			_, err := service.Retry(context.Background(), "session-1", 1)
			Expect(err).To(MatchError(ErrBusy))

			close(recognizer.gate)
			Eventually(done).Should(Receive(BeNil()))
		})

		It("should return ErrNotFound for an unknown session", func() {
			_, err := service.Retry(context.Background(), "nope", 0)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("Commit", func() {
		It("should store the visible items in the month's ledger", func() {
			process()
			_, err := service.SetItemHidden("session-1", 0, 1, true)
			Expect(err).NotTo(HaveOccurred())

			rows, err := service.Commit("session-1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(store.months[MonthKey(2024, 1)]).To(Equal(rows))
			Expect(rows[0].RegisteredAt).To(Equal("2024-02-01 13:04:05"))
			Expect(rows[0].ReceiptID).To(Equal("ID202401151030"))
		})

		It("should refuse a receipt without a date", func() {
			process()
			_, err := service.SetLabel("session-1", 0, 1, 0, classify.Unassigned)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.SetLabel("session-1", 0, 2, 0, classify.Unassigned)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Commit("session-1", 0)
			Expect(err).To(MatchError(ErrIncomplete))
			Expect(store.months).To(BeEmpty())
		})

		It("should file a date typed into an undated receipt under a valid month", func() {
			process()
			_, err := service.SetLabel("session-1", 0, 1, 0, classify.Unassigned)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.SetLabel("session-1", 0, 2, 0, classify.Unassigned)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Edit("session-1", 0, Editing{Field: FieldDate, Index: 0}, "2023")
			Expect(err).NotTo(HaveOccurred())

			rows, err := service.Commit("session-1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[0].PurchaseDate).To(Equal("2023年01月01日"))
			Expect(store.months).To(HaveKey(MonthKey(2023, 1)))
		})

		It("should refuse a receipt with every item hidden", func() {
			process()
			service.SetItemHidden("session-1", 0, 0, true)
			service.SetItemHidden("session-1", 0, 1, true)
			_, err := service.Commit("session-1", 0)
			Expect(err).To(MatchError(ErrIncomplete))
		})

		It("should return store errors", func() {
			process()
			store.addErr = errors.New("locked")
			_, err := service.Commit("session-1", 0)
			Expect(err).To(MatchError(ContainSubstring("locked")))
		})
	})

	Describe("the ledger", func() {
		BeforeEach(func() {
			process()
			_, err := service.Commit("session-1", 0)
			Expect(err).NotTo(HaveOccurred())
			clock.now = clock.now.Add(time.Hour)
			_, err = service.Commit("session-1", 1)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should list registrations for a purchase date newest first", func() {
			regs, err := service.Registrations("2024-01-15")
			Expect(err).NotTo(HaveOccurred())
			Expect(regs).To(HaveLen(2))
			Expect(regs[0].RegisteredAt).To(Equal("2024-02-01 14:04:05"))
			Expect(regs[0].Rows).To(HaveLen(2))
		})

		It("should return nothing for another date", func() {
			regs, err := service.Registrations("2024-01-16")
			Expect(err).NotTo(HaveOccurred())
			Expect(regs).To(BeEmpty())
		})

		It("should reject a malformed date", func() {
			_, err := service.Registrations("15/01/2024")
			Expect(err).To(MatchError(ErrInvalidInput))
		})

		It("should delete one registration", func() {
			Expect(service.DeleteRegistration("2024-01-15", "2024-02-01 13:04:05")).To(Succeed())
			regs, err := service.Registrations("2024-01-15")
			Expect(err).NotTo(HaveOccurred())
			Expect(regs).To(HaveLen(1))
		})

		It("should report a missing registration", func() {
			Expect(service.DeleteRegistration("2024-01-15", "2000-01-01 00:00:00")).To(MatchError(ErrNotFound))
		})

		It("should export the month as CSV", func() {
			var buf bytes.Buffer
			Expect(service.ExportMonth(&buf, "2024-01")).To(Succeed())
			Expect(buf.String()).To(HavePrefix("りんご,150,ABC店,2024年01月15日,2024-02-01 13:04:05,ID202401151030\n"))
			Expect(bytes.Count(buf.Bytes(), []byte("\n"))).To(Equal(4))
		})

		It("should reject a malformed month", func() {
			var buf bytes.Buffer
			Expect(service.ExportMonth(&buf, "January")).To(MatchError(ErrInvalidInput))
		})
	})
})
