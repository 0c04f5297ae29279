package handlers

import (
	"encoding/json"
	"net/http"
)

func jsonContent(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

func ref(name string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + name}
}

var cityParam = map[string]interface{}{
	"name":        "city",
	"in":          "path",
	"description": "City whose summary is queried",
	"required":    true,
	"schema":      map[string]interface{}{"type": "string", "enum": []string{"NYC", "Chicago", "Washington"}},
}

var userTypeParam = map[string]interface{}{
	"name":        "user_type",
	"in":          "query",
	"description": "Rider category (default: Subscriber)",
	"required":    false,
	"schema":      map[string]interface{}{"type": "string", "enum": []string{"Subscriber", "Customer"}, "default": "Subscriber"},
}

var errorResponses = map[string]interface{}{
	"400": map[string]interface{}{"description": "Invalid query parameter", "content": jsonContent(ref("Error"))},
	"404": map[string]interface{}{"description": "Unknown city or no summary committed", "content": jsonContent(ref("Error"))},
}

func withErrors(ok map[string]interface{}) map[string]interface{} {
	responses := map[string]interface{}{"200": ok}
	for code, resp := range errorResponses {
		responses[code] = resp
	}
	return responses
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the trip statistics API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	average := map[string]interface{}{
		"type":        "object",
		"description": "Mean duration in minutes. mean is null and defined is false for an empty group.",
		"properties": map[string]interface{}{
			"mean":    map[string]interface{}{"type": "number", "nullable": true},
			"count":   map[string]string{"type": "integer"},
			"defined": map[string]string{"type": "boolean"},
		},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Bike Share Statistics API",
			"description": "Descriptive statistics over condensed NYC, Chicago and Washington bike-share trips",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/cities": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List cities",
					"description": "Cities that have a committed trip summary",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"cities": map[string]interface{}{"type": "array", "items": ref("Summary")},
									"total":  map[string]string{"type": "integer"},
								},
							}),
						},
					},
				},
			},
			"/api/cities/{city}/stats": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "City statistics",
					"description": "Trip counts per user type, duration split at a threshold and mean durations",
					"parameters": []map[string]interface{}{
						cityParam,
						{
							"name":        "threshold",
							"in":          "query",
							"description": "Duration split in minutes (default: 30)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "number", "minimum": 0, "default": 30},
						},
					},
					"responses": withErrors(map[string]interface{}{
						"description": "Successful response",
						"content":     jsonContent(ref("CityStatistics")),
					}),
				},
			},
			"/api/cities/{city}/histogram": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Trip counts by calendar bucket",
					"description": "Every month, hour or weekday bucket is present, zero-filled",
					"parameters": []map[string]interface{}{
						cityParam,
						{
							"name":        "dimension",
							"in":          "query",
							"description": "Calendar field to group by",
							"required":    true,
							"schema":      map[string]interface{}{"type": "string", "enum": []string{"month", "hour", "weekday"}},
						},
						userTypeParam,
					},
					"responses": withErrors(map[string]interface{}{
						"description": "Successful response",
						"content":     jsonContent(ref("Histogram")),
					}),
				},
			},
			"/api/cities/{city}/durations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Trip duration histogram",
					"description": "Durations below the cap in fixed-width bins with midpoints",
					"parameters":  []map[string]interface{}{cityParam, userTypeParam},
					"responses": withErrors(map[string]interface{}{
						"description": "Successful response",
						"content":     jsonContent(ref("DurationHistogram")),
					}),
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check that the summary store is reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"status": map[string]string{"type": "string"},
								},
							}),
						},
						"503": map[string]interface{}{"description": "Summary store unavailable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
				"Summary": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"city":        map[string]string{"type": "string"},
						"size_bytes":  map[string]string{"type": "integer"},
						"modified_at": map[string]string{"type": "string", "format": "date-time"},
					},
				},
				"Average": average,
				"CityStatistics": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"city": map[string]string{"type": "string"},
						"counts": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"subscribers": map[string]string{"type": "integer"},
								"customers":   map[string]string{"type": "integer"},
								"total":       map[string]string{"type": "integer"},
							},
						},
						"durations": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"threshold_minutes": map[string]string{"type": "number"},
								"at_or_below":       map[string]string{"type": "integer"},
								"above":             map[string]string{"type": "integer"},
								"overall":           ref("Average"),
							},
						},
						"by_user_type": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"subscriber": ref("Average"),
								"customer":   ref("Average"),
							},
						},
						"calculated_at": map[string]string{"type": "string", "format": "date-time"},
					},
				},
				"Histogram": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"city":      map[string]string{"type": "string"},
						"dimension": map[string]string{"type": "string"},
						"user_type": map[string]string{"type": "string"},
						"buckets": map[string]interface{}{
							"type": "array",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"key":   map[string]string{"type": "integer"},
									"label": map[string]string{"type": "string"},
									"count": map[string]string{"type": "integer"},
								},
							},
						},
					},
				},
				"DurationHistogram": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"city":        map[string]string{"type": "string"},
						"user_type":   map[string]string{"type": "string"},
						"cap_minutes": map[string]string{"type": "number"},
						"excluded":    map[string]string{"type": "integer"},
						"bins": map[string]interface{}{
							"type": "array",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"lower":    map[string]string{"type": "number"},
									"upper":    map[string]string{"type": "number"},
									"midpoint": map[string]string{"type": "number"},
									"count":    map[string]string{"type": "integer"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
