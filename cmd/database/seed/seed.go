package seed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"foodgram-backend/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Load reads ingredients.csv and tags.csv from dir (semicolon-delimited,
// header row first) and inserts the rows, skipping ones that already exist.
func Load(db *gorm.DB, dir string) error {
	if err := LoadIngredients(db, filepath.Join(dir, "ingredients.csv")); err != nil {
		return err
	}
	if err := LoadTags(db, filepath.Join(dir, "tags.csv")); err != nil {
		return err
	}
	return nil
}

func LoadIngredients(db *gorm.DB, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	ingredients, err := parseIngredients(file)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(ingredients) == 0 {
		return nil
	}

	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ingredients).Error
}

func LoadTags(db *gorm.DB, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	tags, err := parseTags(file)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(tags) == 0 {
		return nil
	}

	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tags).Error
}

func parseIngredients(r io.Reader) ([]*entities.Ingredient, error) {
	records, err := readRecords(r, 2)
	if err != nil {
		return nil, err
	}

	ingredients := make([]*entities.Ingredient, 0, len(records))
	for _, record := range records {
		ingredients = append(ingredients, &entities.Ingredient{
			ID:              uuid.New(),
			Name:            record[0],
			MeasurementUnit: record[1],
		})
	}
	return ingredients, nil
}

func parseTags(r io.Reader) ([]*entities.Tag, error) {
	records, err := readRecords(r, 3)
	if err != nil {
		return nil, err
	}

	tags := make([]*entities.Tag, 0, len(records))
	for _, record := range records {
		tags = append(tags, &entities.Tag{
			ID:    uuid.New(),
			Name:  record[0],
			Color: record[1],
			Slug:  record[2],
		})
	}
	return tags, nil
}

// readRecords consumes a semicolon-delimited CSV, skipping the header row.
func readRecords(r io.Reader, fields int) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = fields

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
