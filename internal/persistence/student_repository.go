package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"minimalapi/school/internal/persistence/model"
	"minimalapi/school/internal/student"
)

// StudentRepository implements student.Repository. All lookups go through the
// business id.
type StudentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(d *Database) *StudentRepository {
	return &StudentRepository{db: d.db}
}

func (r *StudentRepository) List(ctx context.Context) ([]student.Student, error) {
	var recs []model.Student
	if err := r.db.WithContext(ctx).Order("business_id").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toDomainStudents(recs), nil
}

func (r *StudentRepository) GetByID(ctx context.Context, id int) (student.Student, error) {
	rec, err := r.take(r.db.WithContext(ctx), id)
	if err != nil {
		return student.Student{}, err
	}
	return toDomainStudent(rec), nil
}

func (r *StudentRepository) BornAfter(ctx context.Context, date time.Time) ([]student.Student, error) {
	var recs []model.Student
	err := r.db.WithContext(ctx).
		Where("birth_date > ?", date.UTC()).
		Order("birth_date DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toDomainStudents(recs), nil
}

func (r *StudentRepository) Create(ctx context.Context, s student.Student) (student.Student, error) {
	rec := toStudentModel(s)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Student{}).Where("business_id = ?", s.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return student.ErrConflict
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return student.Student{}, student.ErrConflict
		}
		return student.Student{}, err
	}
	return toDomainStudent(rec), nil
}

func (r *StudentRepository) Update(ctx context.Context, s student.Student) (student.Student, error) {
	var rec model.Student
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = r.take(tx, s.ID)
		if err != nil {
			return err
		}
		rec.FirstName = s.FirstName
		rec.LastName = s.LastName
		rec.BirthDate = s.BirthDate
		return tx.Save(&rec).Error
	})
	if err != nil {
		return student.Student{}, err
	}
	return toDomainStudent(rec), nil
}

func (r *StudentRepository) Delete(ctx context.Context, id int) error {
	res := r.db.WithContext(ctx).Where("business_id = ?", id).Delete(&model.Student{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (r *StudentRepository) take(db *gorm.DB, id int) (model.Student, error) {
	var rec model.Student
	if err := db.Where("business_id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Student{}, student.ErrNotFound
		}
		return model.Student{}, err
	}
	return rec, nil
}

func toStudentModel(s student.Student) model.Student {
	return model.Student{
		BusinessID: s.ID,
		FirstName:  s.FirstName,
		LastName:   s.LastName,
		BirthDate:  s.BirthDate.UTC(),
	}
}

func toDomainStudent(rec model.Student) student.Student {
	return student.Student{
		ID:        rec.BusinessID,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		BirthDate: rec.BirthDate.UTC(),
	}
}

func toDomainStudents(recs []model.Student) []student.Student {
	out := make([]student.Student, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainStudent(rec))
	}
	return out
}
