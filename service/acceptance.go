package service

import (
	"net/http"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
)

type JSON = map[string]interface{}

func Acceptance(a *biff.A, apiRequest func(method, path string) *apitest.Request) {

	a.Alternative("Create container", func(a *biff.A) {
		resp := apiRequest("POST", "/containers").
			WithBodyJson(JSON{
				"name": "users",
			}).Do()
		Save(resp, "Create container", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		biff.AssertEqualJson(resp.BodyJson(), JSON{
			"name":    "users",
			"total":   0,
			"indexes": 0,
			"rules":   0,
		})

		a.Alternative("Retrieve container", func(a *biff.A) {
			resp := apiRequest("GET", "/containers/users").Do()
			Save(resp, "Retrieve container", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"name":    "users",
				"total":   0,
				"indexes": 0,
				"rules":   0,
			})
		})

		a.Alternative("List containers", func(a *biff.A) {
			resp := apiRequest("GET", "/containers").Do()
			Save(resp, "List containers", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), []JSON{
				{"name": "users", "total": 0, "indexes": 0, "rules": 0},
			})
		})

		a.Alternative("Create container twice", func(a *biff.A) {
			resp := apiRequest("POST", "/containers").
				WithBodyJson(JSON{"name": "users"}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
			biff.AssertEqual(resp.BodyJson().(JSON)["error"].(JSON)["code"], "illegal operation")
		})

		a.Alternative("Create index", func(a *biff.A) {
			resp := apiRequest("POST", "/containers/users:createIndex").
				WithBodyJson(JSON{
					"name":      "by-email",
					"fields":    []string{"email"},
					"semantics": "unique",
					"sparse":    true,
				}).Do()
			Save(resp, "Create index", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)

			resp = apiRequest("POST", "/containers/users:createIndex").
				WithBodyJson(JSON{
					"name":      "by-friend",
					"fields":    []string{"friend"},
					"semantics": "nonunique",
					"sparse":    true,
				}).Do()
			biff.AssertEqual(resp.StatusCode, http.StatusCreated)

			a.Alternative("List indexes", func(a *biff.A) {
				resp := apiRequest("POST", "/containers/users:listIndexes").Do()
				Save(resp, "List indexes", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), []JSON{
					{"name": "by-email", "container": "users", "fields": []string{"email"}, "semantics": "unique", "sparse": true},
					{"name": "by-friend", "container": "users", "fields": []string{"friend"}, "semantics": "nonunique", "sparse": true},
				})
			})

			a.Alternative("Drop index", func(a *biff.A) {
				resp := apiRequest("POST", "/containers/users:dropIndex").
					WithBodyJson(JSON{"name": "by-friend"}).Do()
				Save(resp, "Drop index", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusNoContent)

				resp = apiRequest("GET", "/containers/users").Do()
				biff.AssertEqual(resp.BodyJson().(JSON)["indexes"], 1.0)
			})

			a.Alternative("Commit transaction", func(a *biff.A) {
				resp := apiRequest("POST", "/transactions").
					WithBodyJson(JSON{
						"operations": []JSON{
							{"op": "create", "container": "users", "ref": "alice", "set": JSON{"email": "alice@example.com", "age": 30}},
							{"op": "create", "container": "users", "ref": "bob", "set": JSON{"email": "bob@example.com", "age": 25, "friend": JSON{"$ref": "alice"}}},
						},
					}).Do()
				Save(resp, "Commit transaction", `
					Every operation is applied in a single transaction. Records created
					in the request can be linked with {"$ref": name} before they have a
					permanent identity.
				`)

				biff.AssertEqual(resp.StatusCode, http.StatusCreated)
				body := resp.BodyJson().(JSON)
				biff.AssertEqualJson(body["refs"], JSON{
					"alice": "#1:0",
					"bob":   "#1:1",
				})
				biff.AssertEqualJson(body["records"], []JSON{
					{"@rid": "#1:0", "@version": 1, "email": "alice@example.com", "age": 30},
					{"@rid": "#1:1", "@version": 1, "email": "bob@example.com", "age": 25, "friend": JSON{"@rid": "#1:0"}},
				})
				biff.AssertEqual(body["passes"], 1.0)

				a.Alternative("Retrieve record", func(a *biff.A) {
					resp := apiRequest("GET", "/containers/users/records/1").Do()
					Save(resp, "Retrieve record", ``)

					biff.AssertEqual(resp.StatusCode, http.StatusOK)
					biff.AssertEqualJson(resp.BodyJson(), JSON{
						"@rid": "#1:1", "@version": 1, "email": "bob@example.com", "age": 25, "friend": JSON{"@rid": "#1:0"},
					})
				})

				a.Alternative("Retrieve missing record", func(a *biff.A) {
					resp := apiRequest("GET", "/containers/users/records/99").Do()

					biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
				})

				a.Alternative("Lookup by index", func(a *biff.A) {
					resp := apiRequest("POST", "/containers/users:lookup").
						WithBodyJson(JSON{"index": "by-friend", "key": JSON{"$rid": "#1:0"}}).Do()
					Save(resp, "Lookup by index", ``)

					biff.AssertEqual(resp.StatusCode, http.StatusOK)
					biff.AssertEqualJson(resp.BodyJson(), []JSON{
						{"@rid": "#1:1", "@version": 1, "email": "bob@example.com", "age": 25, "friend": JSON{"@rid": "#1:0"}},
					})
				})

				a.Alternative("Duplicated unique key", func(a *biff.A) {
					resp := apiRequest("POST", "/transactions").
						WithBodyJson(JSON{
							"operations": []JSON{
								{"op": "create", "container": "users", "set": JSON{"email": "carol@example.com"}},
								{"op": "create", "container": "users", "set": JSON{"email": "alice@example.com"}},
							},
						}).Do()
					Save(resp, "Commit transaction - constraint violated", ``)

					biff.AssertEqual(resp.StatusCode, http.StatusConflict)
					biff.AssertEqual(resp.BodyJson().(JSON)["error"].(JSON)["code"], "index constraint violated")

					resp = apiRequest("GET", "/containers/users").Do()
					biff.AssertEqual(resp.BodyJson().(JSON)["total"], 2.0)
				})

				a.Alternative("Update and delete", func(a *biff.A) {
					resp := apiRequest("POST", "/transactions").
						WithBodyJson(JSON{
							"operations": []JSON{
								{"op": "update", "rid": "#1:1", "set": JSON{"email": "robert@example.com"}, "unset": []string{"friend"}},
								{"op": "delete", "rid": "#1:0"},
							},
						}).Do()
					Save(resp, "Commit transaction - update and delete", ``)

					biff.AssertEqual(resp.StatusCode, http.StatusCreated)
					biff.AssertEqualJson(resp.BodyJson().(JSON)["records"], []JSON{
						{"@rid": "#1:1", "@version": 2, "email": "robert@example.com", "age": 25},
					})

					resp = apiRequest("GET", "/containers/users/records/0").Do()
					biff.AssertEqual(resp.StatusCode, http.StatusNotFound)

					resp = apiRequest("POST", "/containers/users:lookup").
						WithBodyJson(JSON{"index": "by-email", "key": "bob@example.com"}).Do()
					biff.AssertEqualJson(resp.BodyJson(), []JSON{})
				})

				a.Alternative("Unknown reference", func(a *biff.A) {
					resp := apiRequest("POST", "/transactions").
						WithBodyJson(JSON{
							"operations": []JSON{
								{"op": "create", "container": "users", "set": JSON{"friend": JSON{"$ref": "nobody"}}},
							},
						}).Do()

					biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)

					resp = apiRequest("GET", "/containers/users").Do()
					biff.AssertEqual(resp.BodyJson().(JSON)["total"], 2.0)
				})
			})
		})

		a.Alternative("Set rule", func(a *biff.A) {
			resp := apiRequest("POST", "/containers/users:setRule").
				WithBodyJson(JSON{
					"name":      "adults",
					"condition": JSON{"age": JSON{"$gt": 17}},
				}).Do()
			Save(resp, "Set rule", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)

			a.Alternative("Record breaking the rule", func(a *biff.A) {
				resp := apiRequest("POST", "/transactions").
					WithBodyJson(JSON{
						"operations": []JSON{
							{"op": "create", "container": "users", "set": JSON{"name": "Timmy", "age": 12}},
						},
					}).Do()
				Save(resp, "Commit transaction - validation failed", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusUnprocessableEntity)
			})

			a.Alternative("Delete rule", func(a *biff.A) {
				resp := apiRequest("POST", "/containers/users:deleteRule").
					WithBodyJson(JSON{"name": "adults"}).Do()
				Save(resp, "Delete rule", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusNoContent)

				resp = apiRequest("POST", "/containers/users:listRules").Do()
				biff.AssertEqualJson(resp.BodyJson(), []JSON{})
			})
		})
	})

	a.Alternative("Retrieve missing container", func(a *biff.A) {
		resp := apiRequest("GET", "/containers/nobody").Do()
		Save(resp, "Retrieve container - not found", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
	})

	a.Alternative("Unknown operation", func(a *biff.A) {
		apiRequest("POST", "/containers").WithBodyJson(JSON{"name": "users"}).Do()

		resp := apiRequest("POST", "/transactions").
			WithBodyJson(JSON{
				"operations": []JSON{{"op": "upsert", "container": "users"}},
			}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})
}
