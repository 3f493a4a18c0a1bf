package memory

import (
	"context"
	"sort"

	"madrasah/internal/models"
	"madrasah/internal/store"
)

func (s *Store) CreateMonthlyRecord(ctx context.Context, record *models.MonthlyPaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.OrgId == record.OrgId &&
			existing.StudentId == record.StudentId &&
			existing.ClassId == record.ClassId &&
			existing.Month == record.Month {
			return store.ErrDuplicate
		}
	}
	record.Id = newId(record.Id)
	record.CreatedAt = s.stamp(record.CreatedAt)
	instance := record.Clone()
	s.records[record.Id] = &instance
	return nil
}

func (s *Store) GetMonthlyRecord(ctx context.Context, orgId, recordId string) (*models.MonthlyPaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordId]
	if !ok || record.OrgId != orgId {
		return nil, store.ErrNotFound
	}
	output := record.Clone()
	return &output, nil
}

func (s *Store) ListMonthlyRecords(ctx context.Context, orgId string, filter store.RecordFilter) ([]models.MonthlyPaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.MonthlyPaymentRecord{}
	for _, record := range s.records {
		if record.OrgId != orgId {
			continue
		}
		if filter.Month != nil && record.Month != *filter.Month {
			continue
		}
		if filter.StudentIds != nil && !containsString(filter.StudentIds, record.StudentId) {
			continue
		}
		if filter.UnpaidOnly && record.Status == models.PaymentStatusPaid {
			continue
		}
		output = append(output, record.Clone())
	}
	sort.Slice(output, func(i, j int) bool {
		if output[i].Month == output[j].Month {
			return output[i].CreatedAt.Before(output[j].CreatedAt)
		}
		return output[i].Month < output[j].Month
	})
	return output, nil
}

func (s *Store) UpdateMonthlyRecordStatus(ctx context.Context, orgId, recordId string, expected, status models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[recordId]
	if !ok || existing.OrgId != orgId {
		return store.ErrNotFound
	}
	if existing.Status != expected || existing.PaidAt != nil {
		return store.ErrConflict
	}
	existing.Status = status
	now := s.now()
	existing.UpdatedAt = &now
	return nil
}

func (s *Store) SettleMonthlyRecord(ctx context.Context, record models.MonthlyPaymentRecord, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[record.Id]
	if !ok || existing.OrgId != record.OrgId {
		return store.ErrNotFound
	}
	if existing.Status == models.PaymentStatusPaid {
		return store.ErrConflict
	}
	updated := record.Clone()
	existing.Status = models.PaymentStatusPaid
	existing.PaidAt = updated.PaidAt
	existing.Method = updated.Method
	existing.Reference = updated.Reference
	now := s.now()
	existing.UpdatedAt = &now
	s.insertPayment(payment)
	return nil
}

func (s *Store) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[invoice.StudentId]
	if !ok || student.OrgId != invoice.OrgId {
		return store.ErrNotFound
	}
	invoice.Id = newId(invoice.Id)
	invoice.CreatedAt = s.stamp(invoice.CreatedAt)
	instance := invoice.Clone()
	s.invoices[invoice.Id] = &instance
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, orgId, invoiceId string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.invoices[invoiceId]
	if !ok || invoice.OrgId != orgId {
		return nil, store.ErrNotFound
	}
	output := invoice.Clone()
	return &output, nil
}

func (s *Store) ListInvoices(ctx context.Context, orgId string, filter store.InvoiceFilter) ([]models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.Invoice{}
	for _, invoice := range s.invoices {
		if invoice.OrgId != orgId {
			continue
		}
		if filter.StudentIds != nil && !containsString(filter.StudentIds, invoice.StudentId) {
			continue
		}
		if filter.UnpaidOnly && (invoice.Status == models.InvoiceStatusPaid || invoice.Status == models.InvoiceStatusCancelled) {
			continue
		}
		output = append(output, invoice.Clone())
	}
	sort.Slice(output, func(i, j int) bool {
		return output[i].DueDate.Before(output[j].DueDate)
	})
	return output, nil
}

func (s *Store) UpdateInvoiceStatus(ctx context.Context, orgId, invoiceId string, expected, status models.InvoiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.invoices[invoiceId]
	if !ok || existing.OrgId != orgId {
		return store.ErrNotFound
	}
	if existing.Status != expected || existing.PaidAt != nil {
		return store.ErrConflict
	}
	existing.Status = status
	return nil
}

func (s *Store) SettleInvoice(ctx context.Context, invoice models.Invoice, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.invoices[invoice.Id]
	if !ok || existing.OrgId != invoice.OrgId {
		return store.ErrNotFound
	}
	if existing.Status == models.InvoiceStatusPaid || existing.Status == models.InvoiceStatusCancelled {
		return store.ErrConflict
	}
	updated := invoice.Clone()
	existing.Status = models.InvoiceStatusPaid
	existing.PaidAt = updated.PaidAt
	s.insertPayment(payment)
	return nil
}

func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertPayment(payment)
	return nil
}

// insertPayment expects s.mu to be held
func (s *Store) insertPayment(payment *models.Payment) {
	payment.Id = newId(payment.Id)
	payment.CreatedAt = s.stamp(payment.CreatedAt)
	instance := payment.Clone()
	s.payments[payment.Id] = &instance
}

func (s *Store) ListPayments(ctx context.Context, orgId string, filter store.PaymentFilter) ([]models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output := []models.Payment{}
	for _, payment := range s.payments {
		if payment.OrgId != orgId {
			continue
		}
		if filter.From != nil && payment.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && payment.CreatedAt.After(*filter.To) {
			continue
		}
		if filter.StudentIds != nil && !containsString(filter.StudentIds, payment.StudentId) {
			continue
		}
		if filter.Outcome != nil && payment.Outcome != *filter.Outcome {
			continue
		}
		output = append(output, payment.Clone())
	}
	sort.Slice(output, func(i, j int) bool {
		return output[i].CreatedAt.Before(output[j].CreatedAt)
	})
	return output, nil
}
