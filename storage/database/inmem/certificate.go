package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) certificate.Repository {
	checkDB(db)
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) find(userID, category string) *certificate.Certificate {
	for _, cert := range repo.db.certificate.table {
		if cert.UserID == userID && cert.Category == category {
			return cert
		}
	}
	return nil
}

// GetCertificate ignores forUpdate: transactions already hold the whole store.
func (repo *certificateRepository) GetCertificate(ctx context.Context, userID, category string, _ bool) (certificate.Certificate, error) {
	defer repo.db.read(ctx)()

	if cert := repo.find(userID, category); cert != nil {
		return copyCertificate(*cert), nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) QueryCertificates(ctx context.Context, filter certificate.QueryFilter) ([]certificate.Certificate, error) {
	defer repo.db.read(ctx)()

	certs := make([]certificate.Certificate, 0)
	for _, cert := range repo.db.certificate.table {
		if filter.UserID != "" && cert.UserID != filter.UserID {
			continue
		}
		if filter.Category != "" && cert.Category != filter.Category {
			continue
		}
		certs = append(certs, copyCertificate(*cert))
	}
	sort.Slice(certs, func(i, j int) bool {
		if certs[i].IssuedAt.Equal(certs[j].IssuedAt) {
			return certs[i].ID < certs[j].ID
		}
		return certs[i].IssuedAt.After(certs[j].IssuedAt)
	})
	return certs, nil
}

func (repo *certificateRepository) UpsertCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, bool, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	if existing := repo.find(cert.UserID, cert.Category); existing != nil {
		prev := copyCertificate(*existing)
		at := cert.IssuedAt
		existing.CompletedCourseIDs = copyStrings(cert.CompletedCourseIDs)
		existing.IsOutdated = false
		existing.UpdatedAt = &at
		onUndo(func() { *existing = prev })
		return copyCertificate(*existing), false, nil
	}

	stored := copyCertificate(cert)
	stored.UpdatedAt = nil
	stored.IsOutdated = false
	repo.db.certificate.table[stored.ID] = &stored
	onUndo(func() { delete(repo.db.certificate.table, stored.ID) })
	return copyCertificate(stored), true, nil
}

func (repo *certificateRepository) MarkCertificateOutdated(ctx context.Context, id string) (bool, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	cert, ok := repo.db.certificate.table[id]
	if !ok {
		return false, certificate.ErrNotFound
	}
	if cert.IsOutdated {
		return false, nil
	}
	cert.IsOutdated = true
	onUndo(func() { cert.IsOutdated = false })
	return true, nil
}

func copyCertificate(cert certificate.Certificate) certificate.Certificate {
	cert.CompletedCourseIDs = copyStrings(cert.CompletedCourseIDs)
	if cert.UpdatedAt != nil {
		at := *cert.UpdatedAt
		cert.UpdatedAt = &at
	}
	return cert
}
