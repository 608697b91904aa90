package settings

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/fulldump/biff"
)

func TestStore_SetAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	s, err := Open(path)
	AssertNil(err)

	_, exists := s.String("Public_db_postfix")
	AssertFalse(exists)

	AssertNil(s.Set("Public_db_postfix", "abc"))
	AssertNil(s.Set("other", "value"))

	s, err = Open(path)
	AssertNil(err)
	value, exists := s.String("Public_db_postfix")
	AssertTrue(exists)
	AssertEqual(value, "abc")

	AssertNil(s.Remove("Public_db_postfix"))
	AssertNil(s.Remove("missing"))

	s, err = Open(path)
	AssertNil(err)
	_, exists = s.String("Public_db_postfix")
	AssertFalse(exists)
	value, _ = s.String("other")
	AssertEqual(value, "value")
}

func TestStore_ToleratesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	err := os.WriteFile(path, []byte(`{
	// written by hand
	"Public_db_postfix": "xyz", // trailing comma
}`), 0666)
	AssertNil(err)

	s, err := Open(path)
	AssertNil(err)
	value, _ := s.String("Public_db_postfix")
	AssertEqual(value, "xyz")
}

func TestStore_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	AssertNil(os.WriteFile(path, []byte(`{"a": `), 0666))

	_, err := Open(path)
	AssertNotNil(err)
}
