package service

import (
	"net/http"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
	"github.com/google/uuid"
)

type JSON = map[string]interface{}

// Acceptance walks the users API. apiRequest builds a request for a path
// relative to /v1.
func Acceptance(a *biff.A, apiRequest func(method, path string) *apitest.Request) {

	a.Alternative("Add user", func(a *biff.A) {
		resp := apiRequest("POST", "/users").
			WithBodyJson(JSON{
				"name":  "Sara",
				"age":   33,
				"email": "sara@example.com",
			}).Do()
		Save(resp, "Add user", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		userId, _ := resp.BodyJsonMap()["id"].(string)
		biff.AssertNotEqual(userId, "")
		biff.AssertNotEqual(userId, uuid.Nil.String())
		expectedUser := JSON{
			"id":    userId,
			"name":  "Sara",
			"age":   33,
			"email": "sara@example.com",
		}
		biff.AssertEqualJson(resp.BodyJson(), expectedUser)

		a.Alternative("Retrieve user", func(a *biff.A) {
			resp := apiRequest("GET", "/users/"+userId).Do()
			Save(resp, "Retrieve user", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), expectedUser)
		})

		a.Alternative("List users", func(a *biff.A) {
			resp := apiRequest("GET", "/users").Do()
			Save(resp, "List users", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), []JSON{expectedUser})
		})

		a.Alternative("Add the same user again", func(a *biff.A) {
			resp := apiRequest("POST", "/users").
				WithBodyJson(expectedUser).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusConflict)
		})

		a.Alternative("Rename user", func(a *biff.A) {
			resp := apiRequest("POST", "/users/"+userId+":rename").
				WithBodyJson(JSON{"name": "Sarah"}).Do()
			Save(resp, "Rename user", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			expectedUser["name"] = "Sarah"
			biff.AssertEqualJson(resp.BodyJson(), expectedUser)

			a.Alternative("Retrieve renamed user", func(a *biff.A) {
				resp := apiRequest("GET", "/users/"+userId).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), expectedUser)
			})
		})

		a.Alternative("Rename to nothing", func(a *biff.A) {
			resp := apiRequest("POST", "/users/"+userId+":rename").
				WithBodyJson(JSON{"name": " "}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
		})

		a.Alternative("Delete user", func(a *biff.A) {
			resp := apiRequest("DELETE", "/users/"+userId).Do()
			Save(resp, "Delete user", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)

			a.Alternative("Retrieve deleted user", func(a *biff.A) {
				resp := apiRequest("GET", "/users/"+userId).Do()
				Save(resp, "Retrieve user - not found", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
				biff.AssertEqual(resp.BodyJsonMap()["error"].(map[string]interface{})["description"], "user not found")
			})

			a.Alternative("Delete it again", func(a *biff.A) {
				resp := apiRequest("DELETE", "/users/"+userId).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})

			a.Alternative("List no users", func(a *biff.A) {
				resp := apiRequest("GET", "/users").Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), []JSON{})
			})
		})
	})

	a.Alternative("Add user without name", func(a *biff.A) {
		resp := apiRequest("POST", "/users").
			WithBodyJson(JSON{"age": 1}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})

	a.Alternative("Add malformed user", func(a *biff.A) {
		resp := apiRequest("POST", "/users").
			WithBodyString(`{"name" "Sara"}`).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})

	a.Alternative("Retrieve unknown user", func(a *biff.A) {
		resp := apiRequest("GET", "/users/"+uuid.NewString()).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
	})

	a.Alternative("Retrieve user with invalid id", func(a *biff.A) {
		resp := apiRequest("GET", "/users/not-an-id").Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})
}
