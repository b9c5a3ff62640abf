package httpapi

import (
	"encoding/json"
	"sync"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// APIVersion is reported in the OpenAPI documents.
const APIVersion = "1.0.1"

var (
	swagMu         sync.Mutex
	swagRegistered = map[string]bool{}
)

// mountSwagger serves /swagger/* for one service. Each service registers its
// own swag instance; swag panics on duplicate names so registration happens
// at most once per process.
func mountSwagger(r chi.Router, service string) {
	name := "neurod-" + service
	swagMu.Lock()
	if !swagRegistered[name] {
		swag.Register(name, &swag.Spec{
			Version:          APIVersion,
			BasePath:         "/",
			Schemes:          []string{"http"},
			Title:            "neurod " + service + " API",
			InfoInstanceName: name,
			SwaggerTemplate:  swaggerDoc(service),
		})
		swagRegistered[name] = true
	}
	swagMu.Unlock()
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.InstanceName(name),
		httpSwagger.URL("/swagger/doc.json"),
	))
}

type obj = map[string]any

func ref(def string) obj { return obj{"$ref": "#/definitions/" + def} }

func jsonResp(desc, def string) obj { return obj{"description": desc, "schema": ref(def)} }

func errorResponses(codes ...string) obj {
	out := obj{}
	for _, c := range codes {
		out[c] = jsonResp(c, "ErrorResponse")
	}
	return out
}

// swaggerDoc renders the Swagger 2.0 document for service. The result has no
// template actions, so swag returns it unchanged.
func swaggerDoc(service string) string {
	paths := obj{
		"/": obj{"get": obj{
			"summary":   "Service banner",
			"produces":  []string{"application/json"},
			"responses": obj{"200": jsonResp("OK", "BannerResponse")},
		}},
		"/health": obj{"get": obj{
			"summary":   "Liveness with service message",
			"produces":  []string{"application/json"},
			"responses": obj{"200": jsonResp("OK", "HealthResponse")},
		}},
		"/status": obj{"get": obj{
			"summary":   "Loaded model and uptime",
			"produces":  []string{"application/json"},
			"responses": obj{"200": jsonResp("OK", "StatusResponse")},
		}},
	}
	definitions := obj{
		"ErrorResponse":  schema(obj{"error": str(), "code": integer()}),
		"BannerResponse": schema(obj{"message": str(), "usage": str(), "endpoints": obj{"type": "array", "items": str()}}),
		"HealthResponse": schema(obj{"status": str(), "message": str(), "usage": str()}),
		"StatusResponse": schema(obj{
			"service": str(), "backend": str(), "auth_configured": obj{"type": "boolean"},
			"uptime_seconds": integer(), "server_time_unix": integer(), "model": obj{"type": "object"},
			"replies": integer(),
		}),
	}
	security := []obj{{"ApiKeyAuth": []string{}}}
	upload := []obj{{"name": "file", "in": "formData", "type": "file", "required": true}}

	switch service {
	case "eeg":
		paths["/predict"] = obj{"post": obj{
			"summary":    "Classify every row of an EEG CSV",
			"consumes":   []string{"multipart/form-data"},
			"produces":   []string{"application/json"},
			"security":   security,
			"parameters": upload,
			"responses": merge(obj{"200": jsonResp("OK", "EEGPredictResponse")},
				errorResponses("400", "401", "413", "500")),
		}}
		definitions["EEGPrediction"] = schema(obj{"prediction": integer(), "meaning": str()})
		definitions["EEGPredictResponse"] = schema(obj{
			"file_saved_as": str(), "num_records": integer(),
			"results": obj{"type": "array", "items": ref("EEGPrediction")},
		})
	case "mri":
		paths["/predict"] = obj{"post": obj{
			"summary":    "Classify an MRI slice",
			"consumes":   []string{"multipart/form-data"},
			"produces":   []string{"application/json"},
			"security":   security,
			"parameters": upload,
			"responses": merge(obj{"200": jsonResp("OK", "MRIPrediction")},
				errorResponses("400", "401", "413", "500")),
		}}
		definitions["MRIPrediction"] = schema(obj{"prediction": str(), "meaning": str()})
	case "chat":
		paths["/chat"] = obj{"post": obj{
			"summary":  "Ask the NeuroPath assistant",
			"consumes": []string{"application/json"},
			"produces": []string{"application/json"},
			"parameters": []obj{{
				"name": "body", "in": "body", "required": true, "schema": ref("ChatRequest"),
			}},
			"responses": merge(obj{"200": jsonResp("OK", "ChatResponse")},
				errorResponses("400", "415", "502", "503")),
		}}
		chatReq := schema(obj{"user_message": str()})
		chatReq["required"] = []string{"user_message"}
		definitions["ChatRequest"] = chatReq
		definitions["ChatResponse"] = schema(obj{"reply": str()})
	}

	doc := obj{
		"swagger": "2.0",
		"info": obj{
			"title":   "neurod " + service + " API",
			"version": APIVersion,
		},
		"basePath":    "/",
		"schemes":     []string{"http"},
		"paths":       paths,
		"definitions": definitions,
		"securityDefinitions": obj{
			"ApiKeyAuth": obj{"type": "apiKey", "in": "header", "name": APIKeyHeader},
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func schema(props obj) obj { return obj{"type": "object", "properties": props} }
func str() obj             { return obj{"type": "string"} }
func integer() obj         { return obj{"type": "integer"} }

func merge(a, b obj) obj {
	for k, v := range b {
		a[k] = v
	}
	return a
}
