package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"laurel/internal/certificate/models"
	"laurel/internal/classifier"
	"laurel/pkg/domain"
	"laurel/pkg/platform/sentinel"
)

type CertificateStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *CertificateStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestCertificateStoreSuite(t *testing.T) {
	suite.Run(t, new(CertificateStoreSuite))
}

func (s *CertificateStoreSuite) newCertificate(seed string) *models.Certificate {
	contributor, err := domain.ParseContributorID(uuid.NewString())
	s.Require().NoError(err)
	return &models.Certificate{
		ContributionID: domain.DeriveContributionID([]byte(seed)),
		ContributorID:  contributor,
		Tier:           classifier.TierGold,
		Amount:         500,
		EpochIndex:     0,
		RegisteredAt:   time.Now(),
	}
}

func (s *CertificateStoreSuite) TestCreateIfAbsent() {
	s.Run("creates and finds", func() {
		cert := s.newCertificate("paper-1")
		s.Require().NoError(s.store.CreateIfAbsent(s.ctx, cert))

		found, err := s.store.FindByContribution(s.ctx, cert.ContributionID)
		s.Require().NoError(err)
		s.Equal(cert.Amount, found.Amount)
	})

	s.Run("rejects duplicate", func() {
		err := s.store.CreateIfAbsent(s.ctx, s.newCertificate("paper-1"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown contribution", func() {
		_, err := s.store.FindByContribution(s.ctx, domain.DeriveContributionID([]byte("unknown")))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// Concurrent racers on the same contribution must see exactly one winner.
func (s *CertificateStoreSuite) TestConcurrentCreate() {
	const racers = 50
	cert := s.newCertificate("contended-paper")

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners, losers := 0, 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateIfAbsent(s.ctx, cert)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			default:
				losers++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, winners)
	s.Equal(racers-1, losers)

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *CertificateStoreSuite) TestAttachRef() {
	cert := s.newCertificate("anchored-paper")
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, cert))

	s.Run("attaches once", func() {
		updated, err := s.store.AttachRef(s.ctx, cert.ContributionID, "0xabc")
		s.Require().NoError(err)
		s.Equal("0xabc", updated.OnChainRef)
	})

	s.Run("same ref is a no-op", func() {
		updated, err := s.store.AttachRef(s.ctx, cert.ContributionID, "0xabc")
		s.Require().NoError(err)
		s.Equal("0xabc", updated.OnChainRef)
	})

	s.Run("different ref is rejected and the original stays", func() {
		_, err := s.store.AttachRef(s.ctx, cert.ContributionID, "0xdef")
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

		found, err := s.store.FindByContribution(s.ctx, cert.ContributionID)
		s.Require().NoError(err)
		s.Equal("0xabc", found.OnChainRef)
	})

	s.Run("missing certificate", func() {
		_, err := s.store.AttachRef(s.ctx, domain.DeriveContributionID([]byte("ghost")), "0xabc")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CertificateStoreSuite) TestCount() {
	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, s.newCertificate("paper-1")))
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, s.newCertificate("paper-2")))

	count, err = s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), count)
}
