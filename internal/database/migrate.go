package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/noah-isme/cefr-placement-api/internal/models"
)

// AutoMigrate creates or updates the placement tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Question{}, &models.Evaluation{}, &models.FinalEvaluation{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// QuestionSeed is the YAML layout of a question seed file:
//
//	questions:
//	  - question: "What did you do last weekend?"
type QuestionSeed struct {
	Questions []models.Question `yaml:"questions"`
}

// ParseQuestionSeed decodes a seed document and drops blank questions.
func ParseQuestionSeed(r io.Reader) ([]models.Question, error) {
	var seed QuestionSeed
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Question{}, nil
		}
		return nil, fmt.Errorf("decode question seed: %w", err)
	}

	questions := make([]models.Question, 0, len(seed.Questions))
	for _, question := range seed.Questions {
		text := strings.TrimSpace(question.Question)
		if text == "" {
			continue
		}
		questions = append(questions, models.Question{Question: text})
	}
	return questions, nil
}

// SeedQuestions inserts the questions whose text is not stored yet and returns
// how many were created.
func SeedQuestions(ctx context.Context, db *gorm.DB, questions []models.Question) (int, error) {
	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, question := range questions {
			var count int64
			if err := tx.Model(&models.Question{}).Where("question = ?", question.Question).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			record := models.Question{Question: question.Question}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed questions: %w", err)
	}
	return created, nil
}
