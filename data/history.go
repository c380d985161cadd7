package data

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Prediction outcome values stored in History.Status.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// ErrHistoryNotFound is returned by FindByID when no row has the id.
var ErrHistoryNotFound = errors.New("prediction history not found")

// History is one audit row per prediction attempt.
type History struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Filename       string    `gorm:"type:varchar(255)" json:"filename"`
	PredictedClass string    `gorm:"type:varchar(128)" json:"predicted_class,omitempty"`
	Confidence     float64   `json:"confidence"`
	Severity       string    `gorm:"type:varchar(32)" json:"severity,omitempty"`
	Status         string    `gorm:"type:varchar(10);check:status IN ('success','fail')" json:"status"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time `gorm:"type:timestamp;not null;index" json:"created_at"`
}

// TableName pins the table name regardless of the struct name.
func (History) TableName() string {
	return "prediction_history"
}

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{
		db: db,
	}
}

// Migrate creates or updates the history table.
func (r *HistoryRepository) Migrate() error {
	return r.db.AutoMigrate(&History{})
}

func (r *HistoryRepository) Create(ctx context.Context, h *History) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *HistoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*History, error) {
	var h History
	err := r.db.WithContext(ctx).First(&h, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalize clamps the page to >= 1 and the page size to [1, 100], defaulting to 20.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	return p
}

// FindAll lists history newest first.
func (r *HistoryRepository) FindAll(ctx context.Context, pagination Pagination) ([]History, error) {
	pagination = pagination.Normalize()
	var rows []History
	offset := (pagination.Page - 1) * pagination.PageSize
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(pagination.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
