package form

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"hackmate/internal/registration/models"
	dErrors "hackmate/pkg/domain-errors"
	"hackmate/pkg/validation"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

func pngImage(size int) models.ProofImage {
	data := make([]byte, size)
	copy(data, pngSignature)
	return models.ProofImage{Filename: "proof.png", ContentType: "image/png", Data: data}
}

// recordingPreviews logs allocate/release calls in order.
type recordingPreviews struct {
	mu   sync.Mutex
	ops  []string
	next int
	live map[string]bool
}

func newRecordingPreviews() *recordingPreviews {
	return &recordingPreviews{live: map[string]bool{}}
}

func (r *recordingPreviews) Allocate(models.ProofImage) (Preview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := fmt.Sprintf("p%d", r.next)
	r.live[id] = true
	r.ops = append(r.ops, "allocate:"+id)
	return Preview{ID: id, URL: "preview://" + id}, nil
}

func (r *recordingPreviews) Release(p Preview) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, p.ID)
	r.ops = append(r.ops, "release:"+p.ID)
}

func (r *recordingPreviews) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

type FormSuite struct {
	suite.Suite
	previews *recordingPreviews
	form     *Form
	now      time.Time
}

func TestFormSuite(t *testing.T) {
	suite.Run(t, new(FormSuite))
}

func (s *FormSuite) SetupTest() {
	s.previews = newRecordingPreviews()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	refs := 0
	s.form = New(models.Participant{
		ID:    "user-1",
		Email: "asha@example.com",
		Name:  "Asha Rao",
		Phone: "9876543210",
	},
		WithPreviews(s.previews),
		WithClock(func() time.Time { return s.now }),
		WithReferenceGenerator(func(time.Time) string {
			refs++
			return fmt.Sprintf("UTR-TEST-%d", refs)
		}),
	)
}

func (s *FormSuite) TestPrefillFromIdentity() {
	fields := s.form.Fields()
	s.Equal("Asha Rao", fields.Name)
	s.Equal("9876543210", fields.Phone)
	s.Equal("asha@example.com", fields.Email)
	s.Equal("UTR-TEST-1", fields.TransactionReference)
}

func (s *FormSuite) TestSelectImage() {
	s.Run("swap releases the previous preview before allocating", func() {
		_, err := s.form.SelectImage(pngImage(1024))
		s.Require().NoError(err)
		_, err = s.form.SelectImage(pngImage(2048))
		s.Require().NoError(err)

		s.Equal([]string{"allocate:p1", "release:p1", "allocate:p2"}, s.previews.Ops())
		s.Equal("p2", s.form.Preview().ID)
	})

	s.Run("six megabyte image is rejected and keeps the current selection", func() {
		before := s.form.Preview()
		_, err := s.form.SelectImage(pngImage(6 * 1024 * 1024))
		s.Require().Error(err)

		fe, ok := validation.AsFieldError(err)
		s.Require().True(ok)
		s.Equal(FieldProofImage, fe.Field)
		s.Contains(fe.Message, "5MB")
		s.Equal(before, s.form.Preview())
		s.True(s.form.HasProof())
	})

	s.Run("declared non-image type is rejected", func() {
		img := pngImage(512)
		img.ContentType = "application/pdf"
		_, err := s.form.SelectImage(img)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("content that is not an image is rejected despite the declared type", func() {
		_, err := s.form.SelectImage(models.ProofImage{
			Filename:    "proof.png",
			ContentType: "image/png",
			Data:        []byte("just some text pretending to be an image"),
		})
		fe, ok := validation.AsFieldError(err)
		s.Require().True(ok)
		s.Equal("Please upload a valid image file", fe.Message)
	})

	s.Run("missing content type is filled from the sniffed bytes", func() {
		img := pngImage(256)
		img.ContentType = ""
		_, err := s.form.SelectImage(img)
		s.Require().NoError(err)

		sub, err := s.form.Build("hack-1", "user-1", 499)
		s.Require().NoError(err)
		s.Equal("image/png", sub.Proof.ContentType)
	})
}

func (s *FormSuite) TestResetReleasesPreviewAndRegeneratesReference() {
	s.form.SetName("Someone Else")
	_, err := s.form.SelectImage(pngImage(1024))
	s.Require().NoError(err)

	s.form.Reset()

	s.Empty(s.previews.live)
	s.True(s.form.Preview().IsZero())
	s.False(s.form.HasProof())
	s.Equal("Asha Rao", s.form.Fields().Name)
	s.Equal("UTR-TEST-2", s.form.Fields().TransactionReference)

	// A second reset has nothing left to release.
	s.form.Reset()
	s.Equal([]string{"allocate:p1", "release:p1"}, s.previews.Ops())
}

func (s *FormSuite) TestValidate() {
	valid := func() {
		s.form.Reset()
		_, err := s.form.SelectImage(pngImage(1024))
		s.Require().NoError(err)
	}

	cases := []struct {
		name  string
		edit  func()
		field string
	}{
		{"blank name", func() { s.form.SetName("  ") }, FieldName},
		{"short phone", func() { s.form.SetPhone("98765 432") }, FieldPhone},
		{"blank email", func() { s.form.SetEmail("") }, FieldEmail},
		{"blank reference", func() { s.form.SetTransactionReference("") }, FieldTransactionReference},
		{"no proof", func() { s.form.RemoveImage() }, FieldProofImage},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			valid()
			tc.edit()
			err := s.form.Validate()
			s.Require().Error(err)
			fe, ok := validation.AsFieldError(err)
			s.Require().True(ok)
			s.Equal(tc.field, fe.Field)

			_, err = s.form.Build("hack-1", "user-1", 499)
			s.Error(err, "build must refuse an invalid form")
		})
	}

	s.Run("complete form validates", func() {
		valid()
		s.NoError(s.form.Validate())
	})

	for _, phone := range []string{"98765-4321", "+1 (555) 12", " 9876543210 "} {
		s.Run("phone "+phone+" is long enough", func() {
			valid()
			s.form.SetPhone(phone)
			s.NoError(s.form.Validate())
		})
	}
}

func (s *FormSuite) TestBuildIsImmutableCopy() {
	img := pngImage(128)
	_, err := s.form.SelectImage(img)
	s.Require().NoError(err)
	s.form.SetName("  Asha  ")

	sub, err := s.form.Build("hack-1", "user-1", 499)
	s.Require().NoError(err)
	s.Equal("Asha", sub.Name)
	s.Equal("UTR-TEST-1", sub.TransactionReference)
	s.EqualValues(499, sub.Amount)
	s.Equal(s.now, sub.CreatedAt)

	img.Data[len(img.Data)-1] = 0xFF
	sub.Proof.Data[0] = 0x00
	again, err := s.form.Build("hack-1", "user-1", 499)
	s.Require().NoError(err)
	s.Equal(pngSignature[0], again.Proof.Data[0])
	s.Zero(again.Proof.Data[len(again.Proof.Data)-1])
}

func (s *FormSuite) TestRegenerateReference() {
	ref := s.form.RegenerateReference()
	s.Equal("UTR-TEST-2", ref)
	s.Equal(ref, s.form.Fields().TransactionReference)
}

func TestGenerateReference(t *testing.T) {
	now := time.UnixMilli(1_761_000_000_123)
	ref := GenerateReference(now)

	assert.True(t, strings.HasPrefix(ref, ReferencePrefix))
	assert.LessOrEqual(t, len(ref), MaxReferenceLength)
	assert.NotEqual(t, "", strings.TrimPrefix(ref, ReferencePrefix))
}

func TestMemoryPreviewsRelease(t *testing.T) {
	p := NewMemoryPreviews(nil)
	f := New(models.Participant{Name: "A", Phone: "9876543210", Email: "a@example.com"}, WithPreviews(p))

	_, err := f.SelectImage(pngImage(64))
	require.NoError(t, err)
	_, err = f.SelectImage(pngImage(64))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Live())

	f.Reset()
	assert.Equal(t, 0, p.Live())
	p.Release(Preview{ID: "unknown"})
	assert.Equal(t, 0, p.Live())
}
