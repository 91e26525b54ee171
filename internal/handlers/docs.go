package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description, typ string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      map[string]string{"type": typ},
	}
}

func pathParam(name, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "path",
		"description": description,
		"required":    true,
		"schema":      map[string]string{"type": "string"},
	}
}

func ref(schema string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + schema}
}

func jsonResponse(description string, schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func listOf(schema string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"data":  map[string]interface{}{"type": "array", "items": ref(schema)},
			"total": map[string]string{"type": "integer"},
		},
	}
}

var errorResponses = map[string]interface{}{
	"400": jsonResponse("Invalid input", ref("Error")),
	"404": jsonResponse("Not found", ref("Error")),
	"503": jsonResponse("Estimate history is disabled", ref("Error")),
}

func withErrors(ok map[string]interface{}, codes ...string) map[string]interface{} {
	responses := map[string]interface{}{"200": ok}
	for _, code := range codes {
		responses[code] = errorResponses[code]
	}
	return responses
}

func requestBody(schema string) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": ref(schema)},
		},
	}
}

var (
	number   = map[string]string{"type": "number"}
	integer  = map[string]string{"type": "integer"}
	str      = map[string]string{"type": "string"}
	boolean  = map[string]string{"type": "boolean"}
	dateTime = map[string]string{"type": "string", "format": "date-time"}
	seasons  = map[string]interface{}{"type": "string", "enum": []string{"Summer", "Monsoon", "Winter", "Spring"}}
)

func schemas() map[string]interface{} {
	farm := map[string]interface{}{
		"areaAcres":         number,
		"soilType":          str,
		"season":            seasons,
		"regionTemperature": map[string]interface{}{"type": "number", "nullable": true},
		"costPerAcre":       map[string]interface{}{"type": "number", "nullable": true},
		"region":            map[string]interface{}{"type": "string", "description": "Region whose seasonal normal is used when regionTemperature is absent"},
	}

	estimateProps := map[string]interface{}{"cropId": str}
	recommendProps := map[string]interface{}{
		"category": map[string]interface{}{"type": "string", "enum": []string{"fruits", "vegetables", "grains", "pulses"}},
		"limit":    integer,
	}
	for k, v := range farm {
		estimateProps[k] = v
		recommendProps[k] = v
	}

	return map[string]interface{}{
		"Error": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"error":   str,
				"message": str,
				"code":    integer,
			},
		},
		"Crop": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":                str,
				"name":              str,
				"category":          str,
				"viable_seasons":    map[string]interface{}{"type": "array", "items": seasons},
				"viable_soil_types": map[string]interface{}{"type": "array", "items": str},
				"min_temp":          number,
				"max_temp":          number,
				"water_requirement": map[string]interface{}{"type": "string", "enum": []string{"low", "medium", "high"}},
				"growth_days":       integer,
				"avg_yield":         map[string]interface{}{"type": "number", "nullable": true},
				"market_price":      number,
			},
		},
		"Compatibility": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"cropId":        str,
				"seasonOk":      boolean,
				"soilOk":        boolean,
				"temperatureOk": boolean,
				"soilOverlap":   number,
			},
		},
		"EstimateRequest": map[string]interface{}{
			"type":       "object",
			"required":   []string{"cropId", "areaAcres", "soilType", "season"},
			"properties": estimateProps,
		},
		"RecommendRequest": map[string]interface{}{
			"type":       "object",
			"required":   []string{"areaAcres", "soilType", "season"},
			"properties": recommendProps,
		},
		"EstimationResult": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":                  map[string]interface{}{"type": "string", "description": "Present when the estimate was stored"},
				"cropId":              str,
				"cropName":            str,
				"suitabilityScore":    number,
				"scoreBreakdown":      map[string]interface{}{"type": "object", "properties": map[string]interface{}{"season": number, "soil": number, "temperature": number}},
				"compatibility":       map[string]interface{}{"type": "object", "properties": map[string]interface{}{"seasonOk": boolean, "soilOk": boolean, "temperatureOk": boolean}},
				"yieldPerAcre":        number,
				"yieldSource":         map[string]interface{}{"type": "string", "enum": []string{"catalog", "category_average", "unavailable"}},
				"projectedYield":      number,
				"projectedRevenue":    number,
				"projectedCost":       number,
				"projectedProfit":     number,
				"harvestEstimateDays": integer,
				"waterRequirement":    str,
				"warnings": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":       "object",
						"properties": map[string]interface{}{"crop_id": str, "field": str, "message": str},
					},
				},
			},
		},
		"EstimateRecord": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":         str,
				"input":      ref("EstimateRequest"),
				"result":     ref("EstimationResult"),
				"created_at": dateTime,
			},
		},
		"ClimateNormal": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"region":                      str,
				"season":                      seasons,
				"avg_temperature_celsius":     map[string]interface{}{"type": "number", "nullable": true},
				"avg_max_temperature_celsius": map[string]interface{}{"type": "number", "nullable": true},
				"avg_min_temperature_celsius": map[string]interface{}{"type": "number", "nullable": true},
				"avg_precipitation_mm":        map[string]interface{}{"type": "number", "nullable": true},
				"observation_count":           integer,
				"updated_at":                  dateTime,
			},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Crop Estimator API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Crop Estimator API",
			"description": "Crop suitability scoring, yield and profitability estimates, and ranked crop recommendations",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/crops": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List crops",
					"parameters": []map[string]interface{}{queryParam("category", "fruits, vegetables, grains or pulses", "string")},
					"responses":  withErrors(jsonResponse("Crops in catalog order", listOf("Crop")), "400"),
				},
			},
			"/api/crops/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Get one crop",
					"parameters": []map[string]interface{}{pathParam("id", "Crop id")},
					"responses":  withErrors(jsonResponse("The crop", ref("Crop")), "404"),
				},
			},
			"/api/crops/{id}/compatibility": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Check season, soil and temperature compatibility",
					"parameters": []map[string]interface{}{
						pathParam("id", "Crop id"),
						queryParam("soil", "Soil description, e.g. \"Red Loamy\"", "string"),
						queryParam("season", "Summer, Monsoon, Winter or Spring", "string"),
						queryParam("temperature", "Average regional temperature in °C", "number"),
					},
					"responses": withErrors(jsonResponse("Predicate outcomes", ref("Compatibility")), "400", "404"),
				},
			},
			"/api/estimate": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Estimate suitability, yield and profit for one crop",
					"requestBody": requestBody("EstimateRequest"),
					"responses":   withErrors(jsonResponse("Estimation result", ref("EstimationResult")), "400", "404"),
				},
			},
			"/api/recommend": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Rank catalog crops for a farm",
					"requestBody": requestBody("RecommendRequest"),
					"responses":   withErrors(jsonResponse("Best matches first", listOf("EstimationResult")), "400"),
				},
			},
			"/api/estimates": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List stored estimates",
					"parameters": []map[string]interface{}{
						queryParam("crop_id", "Filter by crop id", "string"),
						queryParam("min_score", "Minimum suitability score", "number"),
						queryParam("start_date", "Created on or after (YYYY-MM-DD)", "string"),
						queryParam("end_date", "Created on or before (YYYY-MM-DD)", "string"),
						queryParam("page", "Page number (default: 1)", "integer"),
						queryParam("limit", "Records per page (default: 100)", "integer"),
					},
					"responses": withErrors(jsonResponse("Paginated estimates", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"data":        map[string]interface{}{"type": "array", "items": ref("EstimateRecord")},
							"total":       integer,
							"page":        integer,
							"limit":       integer,
							"total_pages": integer,
						},
					}), "400", "503"),
				},
			},
			"/api/estimates/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Get one stored estimate",
					"parameters": []map[string]interface{}{pathParam("id", "Estimate id")},
					"responses":  withErrors(jsonResponse("The estimate", ref("EstimateRecord")), "404", "503"),
				},
			},
			"/api/climate/normals/{region}/{season}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get a region's seasonal climate normal",
					"parameters": []map[string]interface{}{
						pathParam("region", "Region id"),
						pathParam("season", "Summer, Monsoon, Winter or Spring"),
					},
					"responses": withErrors(jsonResponse("The normal", ref("ClimateNormal")), "400", "404", "503"),
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": jsonResponse("API is healthy", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"status":        str,
								"timestamp":     dateTime,
								"catalog_crops": integer,
								"database":      str,
							},
						}),
						"503": map[string]string{"description": "Database unavailable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{"schema": str},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": schemas(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
