package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed relationships.sql
var relationshipsSQL string

//go:embed sections.sql
var sectionsSQL string

// Function lists for verification
var EntitiesFunctions = []string{
	"init_entities",
	"insert_entity",
	"select_entity",
	"select_entities",
	"select_entities_by_names",
	"select_entity_names",
	"update_entity_embedding",
	"entities_similarity_query",
	"select_entities_by_similarity",
	"delete_entity",
}

var RelationshipsFunctions = []string{
	"init_relationships",
	"insert_relationship",
	"select_relationship",
	"select_relationships_touching",
	"select_active_relationships_by_type",
	"update_relationship_active",
	"delete_relationship",
}

var SectionsFunctions = []string{
	"init_document_sections",
	"upsert_document_sections",
	"select_document_sections",
	"delete_document_sections",
}

// Init creates the vector and pgcrypto extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing init SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadEntitiesSql loads the entity SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadSql(db, "entities", entitiesSQL, EntitiesFunctions, force)
}

// LoadRelationshipsSql loads the relationship SQL functions
func LoadRelationshipsSql(db *sql.DB, force bool) error {
	return loadSql(db, "relationships", relationshipsSQL, RelationshipsFunctions, force)
}

// LoadSectionsSql loads the document section SQL functions
func LoadSectionsSql(db *sql.DB, force bool) error {
	return loadSql(db, "sections", sectionsSQL, SectionsFunctions, force)
}

// LoadAllSql loads all SQL functions, entities first since relationships reference them
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadRelationshipsSql(db, force); err != nil {
		return err
	}

	return LoadSectionsSql(db, force)
}

// loadSql executes script unless all functions already exist (or force is set)
// and verifies afterwards that every function was created.
func loadSql(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking %s functions: %w", name, err)
	}
	if !exist {
		return fmt.Errorf("not all required %s SQL functions were created", name)
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions reports whether every function in sqlFunctions exists
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	for _, f := range sqlFunctions {
		var exists bool
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !exists {
			log.Printf("Function %s does not exist", f)
			return false, nil
		}
	}
	return true, nil
}
