package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"junks-backend/internal/auth"
	"junks-backend/internal/config"
	"junks-backend/internal/db"
	"junks-backend/internal/docstore"
	"junks-backend/internal/docstore/firestorestore"
	"junks-backend/internal/docstore/mongostore"
	"junks-backend/internal/models"
)

type seedService struct {
	Title       string
	Description string
}

type seedTestimonial struct {
	Name string
	Text string
}

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for ADMIN_PASSWORD_HASH and exit")
	flag.Parse()
	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.StoreConfigured(); err != nil {
		log.Fatal(err)
	}
	if cfg.StoreDriver == config.StoreMemory {
		log.Fatal("seed needs a persistent store, set STORE_DRIVER to mongo or firestore")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close(context.Background())

	services := []seedService{
		{Title: "House Wiring", Description: "Complete wiring for new builds and rewiring of older homes, done to code."},
		{Title: "Solar Installation", Description: "Solar panels, inverters and battery backup sized for your household."},
		{Title: "Emergency Repairs", Description: "Fast call-outs for faults, trips and outages, day or night."},
		{Title: "Compliance Certificates", Description: "Inspections and electrical certificates of compliance for sales and insurance."},
		{Title: "Lighting Design", Description: "Indoor and outdoor lighting planned and installed to suit each space."},
		{Title: "Appliance Installation", Description: "Safe installation of stoves, geysers and other heavy appliances."},
	}
	for _, svc := range services {
		created, err := addUnlessExists(ctx, store, docstore.CollectionServices, "title", svc.Title, map[string]interface{}{
			"title":       svc.Title,
			"description": svc.Description,
		})
		if err != nil {
			log.Fatal(err)
		}
		if created {
			log.Printf("service seeded: %s", svc.Title)
		}
	}

	testimonials := []seedTestimonial{
		{Name: "Thabo M.", Text: "They rewired our whole house in two days and left everything spotless."},
		{Name: "Lerato K.", Text: "Our solar system has not missed a beat through load shedding. Highly recommended."},
		{Name: "Pieter V.", Text: "Came out late on a Sunday to fix a fault. Friendly and professional."},
	}
	for _, t := range testimonials {
		created, err := addUnlessExists(ctx, store, docstore.CollectionTestimonials, "name", t.Name, map[string]interface{}{
			"name": t.Name,
			"text": t.Text,
		})
		if err != nil {
			log.Fatal(err)
		}
		if created {
			log.Printf("testimonial seeded: %s", t.Name)
		}
	}

	// Existing settings are left alone so edits made in the admin survive a reseed.
	_, err = store.Get(ctx, docstore.CollectionSettings, docstore.SettingsSiteID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		defaults := models.DefaultSettings()
		if err := store.Merge(ctx, docstore.CollectionSettings, docstore.SettingsSiteID, map[string]interface{}{
			"location": defaults.Location,
			"phone":    defaults.Phone,
			"email":    defaults.Email,
		}); err != nil {
			log.Fatal(err)
		}
		log.Printf("settings seeded")
	case err != nil:
		log.Fatal(err)
	}

	log.Printf("seed complete")
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	if cfg.StoreDriver == config.StoreFirestore {
		app, err := firestorestore.NewApp(ctx, cfg.FirestoreProjectID, cfg.GoogleCredentials)
		if err != nil {
			return nil, err
		}
		return firestorestore.New(ctx, app)
	}

	client, database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return mongostore.New(client, database), nil
}

func addUnlessExists(ctx context.Context, store docstore.Store, collection, field, value string, fields map[string]interface{}) (bool, error) {
	existing, err := store.Query(ctx, docstore.Query{
		Collection: collection,
		Where:      &docstore.Filter{Field: field, Value: value},
		Limit:      1,
	})
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	if _, err := store.Add(ctx, collection, fields); err != nil {
		return false, err
	}
	return true, nil
}
