package record

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "idv/pkg/domain-errors"
)

type RecordSuite struct {
	suite.Suite
}

func TestRecordSuite(t *testing.T) {
	suite.Run(t, new(RecordSuite))
}

func (s *RecordSuite) TestFromBootstrap() {
	s.Run("marks non-empty values as bootstrap", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldEmail: String("jane@example.com"),
		})
		e, ok := r.Get(FieldEmail)
		s.Require().True(ok)
		s.True(e.Bootstrap)
		s.True(e.Populated())
		s.True(e.Submittable())
	})

	s.Run("skips empty values so a blank hint cannot satisfy a screen", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldEmail: String(""),
			FieldCity:  List(),
		})
		s.Zero(r.Len())
	})
}

func (s *RecordSuite) TestApplyDecrypted() {
	s.Run("bootstrap value wins over decrypted", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldFirstName: String("Jane"),
		})
		r.ApplyDecrypted(map[FieldID]Value{
			FieldFirstName: String("Janet"),
		}, nil)

		e, _ := r.Get(FieldFirstName)
		s.Equal("Jane", e.Value.Scalar())
		s.True(e.Bootstrap)
		s.False(e.Decrypted)
	})

	s.Run("decrypted fills fields the caller did not hint", func() {
		r := New()
		r.ApplyDecrypted(map[FieldID]Value{
			FieldLastName: String("Doe"),
		}, nil)

		e, _ := r.Get(FieldLastName)
		s.Equal("Doe", e.Value.Scalar())
		s.True(e.Decrypted)
		s.True(e.Populated())
		s.False(e.Submittable(), "decrypted values are never re-transmitted")
	})

	s.Run("scrubbed field is populated without a value", func() {
		r := New()
		r.ApplyDecrypted(nil, []FieldID{FieldSSN9})

		e, _ := r.Get(FieldSSN9)
		s.True(e.Scrubbed)
		s.True(e.Value.IsEmpty())
		s.True(e.Populated())
	})

	s.Run("scrubbed does not clobber an already populated field", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldSSN9: String("123456789"),
		})
		r.ApplyDecrypted(nil, []FieldID{FieldSSN9})

		e, _ := r.Get(FieldSSN9)
		s.False(e.Scrubbed)
		s.Equal("123456789", e.Value.Scalar())
	})
}

func (s *RecordSuite) TestMerge() {
	s.Run("changed value turns dirty and drops provenance", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldEmail: String("jane@example.com"),
		})
		r.Merge(FieldEmail, String("janet@example.com"))

		e, _ := r.Get(FieldEmail)
		s.True(e.Dirty)
		s.False(e.Bootstrap)
		s.Equal("janet@example.com", e.Value.Scalar())
	})

	s.Run("unchanged value keeps all flags", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldEmail: String("jane@example.com"),
		})
		r.Merge(FieldEmail, String("jane@example.com"))

		e, _ := r.Get(FieldEmail)
		s.True(e.Bootstrap)
		s.False(e.Dirty)
	})

	s.Run("resubmitting a dirty value keeps it dirty", func() {
		r := New()
		r.Merge(FieldCity, String("Austin"))
		r.Merge(FieldCity, String("Austin"))

		e, _ := r.Get(FieldCity)
		s.True(e.Dirty)
	})

	s.Run("clearing a field that never had a value is not a change", func() {
		r := New()
		r.Merge(FieldAddressLine2, String(""))
		s.Zero(r.Len())
	})

	s.Run("list values compare as sets", func() {
		r := New()
		r.Merge(FieldCitizenships, List("US", "CA"))
		r.MarkSubmitted(FieldCitizenships)

		r.Merge(FieldCitizenships, List("CA", "US", "CA"))
		e, _ := r.Get(FieldCitizenships)
		s.False(e.Dirty, "reordered duplicate list is the same set")

		r.Merge(FieldCitizenships, List("CA", "MX"))
		e, _ = r.Get(FieldCitizenships)
		s.True(e.Dirty)
	})

	s.Run("disabled flag survives an edit", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldDOB: String("1990-01-01"),
		})
		r.ApplyDisabled(FieldDOB)
		r.Merge(FieldDOB, String("1991-02-02"))

		e, _ := r.Get(FieldDOB)
		s.True(e.Disabled)
		s.True(e.Dirty)
	})
}

func (s *RecordSuite) TestMarkSubmitted() {
	s.Run("clears dirty and bootstrap so a resubmit sends nothing", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldEmail: String("jane@example.com"),
		})
		r.Merge(FieldCity, String("Austin"))
		r.MarkSubmitted(FieldEmail, FieldCity)

		for _, fid := range []FieldID{FieldEmail, FieldCity} {
			e, _ := r.Get(fid)
			s.False(e.Submittable())
			s.True(e.Populated(), "submitted fields stay populated")
		}
	})
}

func (s *RecordSuite) TestSnapshot() {
	s.Run("later merges do not leak into the snapshot", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldEmail:        String("jane@example.com"),
			FieldCitizenships: List("US"),
		})
		snap := r.Snapshot()

		r.Merge(FieldEmail, String("janet@example.com"))
		r.Merge(FieldCitizenships, List("US", "CA"))

		s.Equal("jane@example.com", snap.Value(FieldEmail).Scalar())
		s.Equal([]string{"US"}, snap.Value(FieldCitizenships).Items())
	})
}

type PayloadSuite struct {
	suite.Suite
}

func TestPayloadSuite(t *testing.T) {
	suite.Run(t, new(PayloadSuite))
}

func (s *PayloadSuite) TestBuildPayload() {
	s.Run("includes only dirty or bootstrap fields", func() {
		r := FromBootstrap(map[FieldID]Value{
			FieldEmail: String("jane@example.com"),
		})
		r.ApplyDecrypted(map[FieldID]Value{
			FieldLastName: String("Doe"),
		}, []FieldID{FieldSSN9})
		r.Merge(FieldCity, String("Austin"))

		payload, err := r.BuildPayload()
		s.Require().NoError(err)
		s.Equal([]FieldID{FieldCity, FieldEmail}, PayloadFieldIDs(payload))
	})

	s.Run("unedited record yields an empty payload", func() {
		r := New()
		r.ApplyDecrypted(map[FieldID]Value{
			FieldFirstName: String("Jane"),
		}, nil)

		payload, err := r.BuildPayload()
		s.Require().NoError(err)
		s.Empty(payload)
	})

	s.Run("normalizes dates to ISO format", func() {
		for _, raw := range []string{"1990-06-15", "06/15/1990", "1990-06-15T00:00:00Z"} {
			r := New()
			r.Merge(FieldDOB, String(raw))
			payload, err := r.BuildPayload()
			s.Require().NoError(err, "layout %q", raw)
			s.Equal("1990-06-15", payload[FieldDOB].Scalar())
		}
	})

	s.Run("rejects an unparseable date", func() {
		r := New()
		r.Merge(FieldDOB, String("June 15th"))
		_, err := r.BuildPayload()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("permanent resident without nationality violates the payload contract", func() {
		r := New()
		r.Merge(FieldUSLegalStatus, String(LegalStatusPermanentResident))
		_, err := r.BuildPayload()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("visa requires nationality and visa kind", func() {
		r := New()
		r.Merge(FieldUSLegalStatus, String(LegalStatusVisa))
		r.Merge(FieldNationality, String("BR"))
		_, err := r.BuildPayload()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		r.Merge(FieldVisaKind, String("h1b"))
		payload, err := r.BuildPayload()
		s.Require().NoError(err)
		s.Equal("visa", payload[FieldUSLegalStatus].Scalar())
	})

	s.Run("citizen needs no nationality", func() {
		r := New()
		r.Merge(FieldUSLegalStatus, String(LegalStatusCitizen))
		_, err := r.BuildPayload()
		s.NoError(err)
	})

	s.Run("nationality satisfied outside the payload counts", func() {
		r := New()
		r.ApplyDecrypted(map[FieldID]Value{
			FieldNationality: String("BR"),
		}, nil)
		r.Merge(FieldUSLegalStatus, String(LegalStatusPermanentResident))

		payload, err := r.BuildPayload()
		s.Require().NoError(err)
		s.NotContains(payload, FieldNationality, "decrypted nationality is not re-sent")
	})
}
