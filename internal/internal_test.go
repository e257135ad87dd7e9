package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("**")
	req.Error(err)
	_, err = CharacterRune("")
	req.Error(err)
}

func TestWords(t *testing.T) {
	req := require.New(t)

	req.Equal([]string{"flop", "travel"}, Words(" flop, ,travel ,"))
	req.Nil(Words(""))
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	valid := Config{
		JwtSecret:         "0123456789abcdef0123456789abcdef",
		AuthTokenDuration: time.Hour,
		MaxUploadBytes:    1024,
		CharReplacement:   "*",
	}
	req.NoError(valid.Validate())

	short := valid
	short.JwtSecret = "secret"
	req.Error(short.Validate())

	noDuration := valid
	noDuration.AuthTokenDuration = 0
	req.Error(noDuration.Validate())
}

func TestInspectHandler(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	defer func() { _ = db.Close() }()

	req.NoError(db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{"doc/users/u1", "doc/users/u2", "doc/chat/m1"} {
			if err := txn.Set([]byte(key), []byte("value")); err != nil {
				return err
			}
		}
		return nil
	}))

	rec := httptest.NewRecorder()
	InspectHandler(db, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect?prefix=doc/users/&limit=1", nil))

	req.Equal(http.StatusOK, rec.Code)
	var rows []InspectRow
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &rows))
	req.Equal([]InspectRow{{Key: "doc/users/u1", Size: 5}}, rows)
}
