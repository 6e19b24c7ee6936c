package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	positionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Position",
		Fields: graphql.Fields{
			"x":      &graphql.Field{Type: graphql.Float},
			"y":      &graphql.Field{Type: graphql.Float},
			"system": &graphql.Field{Type: graphql.String},
		},
	})

	treeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tree",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.Int},
			"plot_id":    &graphql.Field{Type: graphql.Int},
			"position":   &graphql.Field{Type: positionType},
			"status":     &graphql.Field{Type: graphql.String},
			"species":    &graphql.Field{Type: graphql.String},
			"notes":      &graphql.Field{Type: graphql.String},
			"photo_url":  &graphql.Field{Type: graphql.String},
			"planted_by": &graphql.Field{Type: graphql.String},
			"label": &graphql.Field{
				Type:        graphql.String,
				Description: "Human-readable status label",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					tree, ok := p.Source.(domain.Tree)
					if !ok {
						return nil, nil
					}
					return domain.DisplayLabel(domain.NormalizeStatus(string(tree.Status))), nil
				},
			},
		},
	})

	plotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Plot",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.Int},
			"name":       &graphql.Field{Type: graphql.String},
			"tree_count": &graphql.Field{Type: graphql.Int},
		},
	})

	taskCountsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TaskCounts",
		Fields: graphql.Fields{
			"total":   &graphql.Field{Type: graphql.Int},
			"done":    &graphql.Field{Type: graphql.Int},
			"pending": &graphql.Field{Type: graphql.Int},
			"overdue": &graphql.Field{Type: graphql.Int},
		},
	})

	taskType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Task",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.Int},
			"tree_id":     &graphql.Field{Type: graphql.Int},
			"title":       &graphql.Field{Type: graphql.String},
			"status":      &graphql.Field{Type: graphql.String},
			"assigned_to": &graphql.Field{Type: graphql.String},
		},
	})

	detailType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TreeDetail",
		Fields: graphql.Fields{
			"tree_id": &graphql.Field{Type: graphql.Int},
			"partial": &graphql.Field{Type: graphql.Boolean},
			"counts":  &graphql.Field{Type: taskCountsType},
			"tasks":   &graphql.Field{Type: graphql.NewList(taskType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"trees": &graphql.Field{
				Type:        graphql.NewList(treeType),
				Description: "List all planted trees",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trees.List(p.Context)
				},
			},
			"tree": &graphql.Field{
				Type:        treeType,
				Description: "Get a tree by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(int)
					return deps.Trees.GetByID(p.Context, int64(id))
				},
			},
			"plots": &graphql.Field{
				Type:        graphql.NewList(plotType),
				Description: "List all survey plots",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Plots.List(p.Context)
				},
			},
			"plotTrees": &graphql.Field{
				Type:        graphql.NewList(treeType),
				Description: "Trees spatially contained in a plot",
				Args: graphql.FieldConfigArgument{
					"plot_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["plot_id"].(int)
					return deps.Trees.ListByPlot(p.Context, int64(id))
				},
			},
			"treeDetail": &graphql.Field{
				Type:        detailType,
				Description: "Per-tree maintenance detail; concurrent queries share one fetch",
				Args: graphql.FieldConfigArgument{
					"tree_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["tree_id"].(int)
					return deps.Details.GetDetail(p.Context, int64(id))
				},
			},
			"stationLabels": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Survey-station labels A, B, ... Z, AA, AB, ...",
				Args: graphql.FieldConfigArgument{
					"count": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Plots.StationLabels(p.Args["count"].(int)), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
