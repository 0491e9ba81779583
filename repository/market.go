package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"agora/blob"
	"agora/identity"
	"agora/models"
	"agora/store"
)

// SearchParams narrow the approved-listing stream. Zero values mean
// "no constraint"; price bounds are inclusive.
type SearchParams struct {
	Text     string
	Tags     []string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// IsZero reports whether the params impose no constraint at all.
func (p SearchParams) IsZero() bool {
	return strings.TrimSpace(p.Text) == "" && len(p.Tags) == 0 && p.MinPrice == nil && p.MaxPrice == nil
}

// MarketRepository defines the data operations behind the marketplace
// screens, including the admin approval workflow.
type MarketRepository interface {
	// Products emits listings with the given status; the empty status
	// emits every listing regardless of status.
	Products(ctx context.Context, status models.ProductStatus) (<-chan []models.Product, error)
	PendingApproval(ctx context.Context) (<-chan []models.Product, error)
	ProductByID(ctx context.Context, productID string) (<-chan models.ProductSnapshot, error)
	SellerProducts(ctx context.Context, sellerID string) (<-chan []models.Product, error)
	// Search is restricted to APPROVED listings; text, tag and price
	// filters run client-side over the approved snapshot.
	Search(ctx context.Context, params SearchParams) (<-chan []models.Product, error)

	CreateProduct(ctx context.Context, draft models.ProductDraft) (*models.Product, error)
	UpdateProduct(ctx context.Context, actorID string, product models.Product) error
	// AppendProductImages uploads and appends new image URLs; it never
	// replaces the existing list.
	AppendProductImages(ctx context.Context, actorID, productID string, images []models.ImageUpload) error
	DeleteProduct(ctx context.Context, actorID, productID string) error

	UpdateProductStatus(ctx context.Context, actorID, productID string, status models.ProductStatus, adminComment string) error
	Reactivate(ctx context.Context, actorID, productID string) error

	ProductFavorited(ctx context.Context, productID, userID string) (<-chan bool, error)
	FavoriteProduct(ctx context.Context, productID, userID string) error
	UnfavoriteProduct(ctx context.Context, productID, userID string) error
	FavoriteProducts(ctx context.Context, userID string) (<-chan []models.Product, error)

	Reviews(ctx context.Context, productID string) (<-chan []models.ProductReview, error)
	AddReview(ctx context.Context, authorID, productID string, rating int, text string) (*models.ProductReview, error)
	UpdateReview(ctx context.Context, actorID string, review models.ProductReview) error
	DeleteReview(ctx context.Context, actorID, reviewID string) error

	IncrementViews(ctx context.Context, productID string) error
	SellerStats(ctx context.Context, sellerID string) (<-chan models.SellerStats, error)
	Categories(ctx context.Context) ([]string, error)
	// UpdateSellerProfileImage fans the new avatar out across every
	// listing owned by the seller in one batch.
	UpdateSellerProfileImage(ctx context.Context, sellerID, avatarURL string) error
}

// marketRepository implements MarketRepository
type marketRepository struct {
	store store.Client
	blobs blob.Store
	authz identity.Authorizer
	log   *slog.Logger
}

// NewMarketRepository creates a new marketplace repository.
func NewMarketRepository(st store.Client, blobs blob.Store, authz identity.Authorizer, log *slog.Logger) MarketRepository {
	if log == nil {
		log = slog.Default()
	}
	return &marketRepository{store: st, blobs: blobs, authz: authz, log: log}
}

func productDoc(id string) store.Doc { return store.Doc{Collection: models.ColProducts, ID: id} }
func reviewDoc(id string) store.Doc  { return store.Doc{Collection: models.ColProductReviews, ID: id} }

func productFavDoc(userID, productID string) store.Doc {
	return store.Doc{Collection: models.ColProductFavorites, ID: models.FavoriteKey(userID, productID)}
}

func (r *marketRepository) productStream(ctx context.Context, q store.Query, filter func(models.Product) bool) (<-chan []models.Product, error) {
	in, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan []models.Product, 1)
	go func() {
		defer close(out)
		for snap := range in {
			products := decodeAll[models.Product](snap, r.log, "product")
			if filter != nil {
				kept := products[:0]
				for _, p := range products {
					if filter(p) {
						kept = append(kept, p)
					}
				}
				products = kept
			}
			select {
			case out <- products:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *marketRepository) Products(ctx context.Context, status models.ProductStatus) (<-chan []models.Product, error) {
	q := store.NewQuery(models.ColProducts).OrderBy("createdAt", store.Desc)
	if status != "" {
		q = q.Where(models.FieldStatus, store.OpEqual, status)
	}
	return r.productStream(ctx, q, nil)
}

func (r *marketRepository) PendingApproval(ctx context.Context) (<-chan []models.Product, error) {
	q := store.NewQuery(models.ColProducts).
		Where(models.FieldStatus, store.OpEqual, models.StatusPending).
		OrderBy("createdAt", store.Asc)
	return r.productStream(ctx, q, nil)
}

func (r *marketRepository) ProductByID(ctx context.Context, productID string) (<-chan models.ProductSnapshot, error) {
	in, err := r.store.SubscribeDoc(ctx, productDoc(productID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan models.ProductSnapshot, 1)
	go func() {
		defer close(out)
		for snap := range in {
			ps := models.ProductSnapshot{Exists: snap.Exists}
			if snap.Exists {
				if err := snap.DataTo(&ps.Product); err != nil {
					r.log.Warn("skipping malformed document", "kind", "product", "doc", snap.Doc.ID, "error", err)
					continue
				}
			}
			select {
			case out <- ps:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *marketRepository) SellerProducts(ctx context.Context, sellerID string) (<-chan []models.Product, error) {
	q := store.NewQuery(models.ColProducts).
		Where("sellerId", store.OpEqual, sellerID).
		OrderBy("createdAt", store.Desc)
	return r.productStream(ctx, q, nil)
}

// Search never surfaces pending, rejected or paused listings. The store
// cannot combine more than one inequality/array filter per query, so the
// remaining filters run here over the APPROVED snapshot.
func (r *marketRepository) Search(ctx context.Context, params SearchParams) (<-chan []models.Product, error) {
	q := store.NewQuery(models.ColProducts).
		Where(models.FieldStatus, store.OpEqual, models.StatusApproved).
		OrderBy("createdAt", store.Desc)
	return r.productStream(ctx, q, func(p models.Product) bool { return matchesSearch(p, params) })
}

func matchesSearch(p models.Product, params SearchParams) bool {
	if text := strings.ToLower(strings.TrimSpace(params.Text)); text != "" {
		hay := strings.ToLower(p.Title + " " + p.Description + " " + strings.Join(p.Tags, " "))
		if !strings.Contains(hay, text) {
			return false
		}
	}
	if len(params.Tags) > 0 && !tagsIntersect(p.Tags, params.Tags) {
		return false
	}
	if params.MinPrice != nil && p.Price.Cmp(*params.MinPrice) < 0 {
		return false
	}
	if params.MaxPrice != nil && p.Price.Cmp(*params.MaxPrice) > 0 {
		return false
	}
	return true
}

func tagsIntersect(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

func (r *marketRepository) CreateProduct(ctx context.Context, draft models.ProductDraft) (*models.Product, error) {
	sellerSnap, err := r.store.Get(ctx, userDoc(draft.SellerID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	if !sellerSnap.Exists {
		return nil, models.NewNotFoundError("user", draft.SellerID)
	}
	var seller models.User
	if err := sellerSnap.DataTo(&seller); err != nil {
		return nil, wrapRemote(err)
	}

	productID := r.store.NewID()
	urls := make([]string, 0, len(draft.Images))
	for i, img := range draft.Images {
		url, err := r.blobs.Upload(ctx, fmt.Sprintf("products/%s/%d-%s", productID, i, img.Name), img.Data, img.ContentType)
		if err != nil {
			return nil, wrapRemote(err)
		}
		urls = append(urls, url)
	}

	now := time.Now().UTC()
	product := models.Product{
		ID:            productID,
		SellerID:      seller.ID,
		SellerName:    seller.Username,
		SellerAvatar:  seller.Avatar,
		Title:         draft.Title,
		Description:   draft.Description,
		Price:         draft.Price,
		Category:      draft.Category,
		Tags:          draft.Tags,
		ImageURLs:     urls,
		Status:        models.StatusPending,
		Stock:         draft.Stock,
		LimitedStock:  draft.LimitedStock,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	data, err := store.DataFrom(product)
	if err != nil {
		return nil, wrapRemote(err)
	}
	if err := r.store.Set(ctx, productDoc(productID), data); err != nil {
		return nil, wrapRemote(err)
	}
	return &product, nil
}

// UpdateProduct rewrites only seller-editable fields after re-reading
// current state; status, counters and denormalized seller info survive.
func (r *marketRepository) UpdateProduct(ctx context.Context, actorID string, product models.Product) error {
	current, err := r.getProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	if current.SellerID != actorID && !r.authz.IsAdmin(actorID) {
		return models.NewPermissionError("only the seller or an admin may edit a listing")
	}
	fields := map[string]any{
		models.FieldTitle:         product.Title,
		models.FieldDescription:   product.Description,
		models.FieldPrice:         product.Price,
		models.FieldCategory:      product.Category,
		models.FieldTags:          product.Tags,
		models.FieldStock:         product.Stock,
		models.FieldLimitedStock:  product.LimitedStock,
		models.FieldLastUpdatedAt: time.Now().UTC(),
	}
	return wrapRemote(r.store.Update(ctx, productDoc(product.ID), fields))
}

func (r *marketRepository) AppendProductImages(ctx context.Context, actorID, productID string, images []models.ImageUpload) error {
	current, err := r.getProduct(ctx, productID)
	if err != nil {
		return err
	}
	if current.SellerID != actorID && !r.authz.IsAdmin(actorID) {
		return models.NewPermissionError("only the seller or an admin may edit a listing")
	}
	urls := make([]string, 0, len(images))
	for i, img := range images {
		url, err := r.blobs.Upload(ctx, fmt.Sprintf("products/%s/%d-%d-%s", productID, time.Now().UnixNano(), i, img.Name), img.Data, img.ContentType)
		if err != nil {
			return wrapRemote(err)
		}
		urls = append(urls, url)
	}
	return wrapRemote(r.store.RunTransaction(ctx, func(tx store.Transaction) error {
		snap, err := tx.Get(productDoc(productID))
		if err != nil {
			return err
		}
		if !snap.Exists {
			return models.NewNotFoundError("product", productID)
		}
		var p models.Product
		if err := snap.DataTo(&p); err != nil {
			return err
		}
		tx.Update(productDoc(productID), map[string]any{
			models.FieldImageURLs:     append(p.ImageURLs, urls...),
			models.FieldLastUpdatedAt: time.Now().UTC(),
		})
		return nil
	}))
}

// DeleteProduct cascades reviews and favorites in one atomic batch;
// blobs stay behind by design.
func (r *marketRepository) DeleteProduct(ctx context.Context, actorID, productID string) error {
	current, err := r.getProduct(ctx, productID)
	if err != nil {
		return err
	}
	if current.SellerID != actorID && !r.authz.IsAdmin(actorID) {
		return models.NewPermissionError("only the seller or an admin may delete a listing")
	}
	batch := r.store.Batch()
	for _, col := range []string{models.ColProductReviews, models.ColProductFavorites} {
		snaps, err := r.store.Documents(ctx, store.NewQuery(col).Where("productId", store.OpEqual, productID))
		if err != nil {
			return wrapRemote(err)
		}
		for _, s := range snaps {
			batch.Delete(s.Doc)
		}
	}
	batch.Delete(productDoc(productID))
	return wrapRemote(batch.Commit(ctx))
}

func (r *marketRepository) getProduct(ctx context.Context, productID string) (*models.Product, error) {
	snap, err := r.store.Get(ctx, productDoc(productID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	if !snap.Exists {
		return nil, models.NewNotFoundError("product", productID)
	}
	var p models.Product
	if err := snap.DataTo(&p); err != nil {
		return nil, wrapRemote(err)
	}
	return &p, nil
}

// UpdateProductStatus enforces the approval workflow at the repository
// boundary: admins may perform any transition, sellers may only move
// their own APPROVED listing to PAUSED or SOLD. Rejection requires a
// non-blank comment. approvedAt is set only on transition to APPROVED.
func (r *marketRepository) UpdateProductStatus(ctx context.Context, actorID, productID string, status models.ProductStatus, adminComment string) error {
	if !status.Valid() {
		return models.NewValidationError("unknown product status: " + string(status))
	}
	if status == models.StatusRejected && strings.TrimSpace(adminComment) == "" {
		return models.NewValidationError("a rejection requires a comment")
	}
	return wrapRemote(r.store.RunTransaction(ctx, func(tx store.Transaction) error {
		snap, err := tx.Get(productDoc(productID))
		if err != nil {
			return err
		}
		if !snap.Exists {
			return models.NewNotFoundError("product", productID)
		}
		var current models.Product
		if err := snap.DataTo(&current); err != nil {
			return err
		}

		admin := r.authz.IsAdmin(actorID)
		sellerPause := current.SellerID == actorID &&
			current.Status == models.StatusApproved &&
			(status == models.StatusPaused || status == models.StatusSold)
		if !admin && !sellerPause {
			return models.NewPermissionError("status transition not permitted for this user")
		}

		now := time.Now().UTC()
		fields := map[string]any{
			models.FieldStatus:        status,
			models.FieldLastUpdatedAt: now,
		}
		if status == models.StatusApproved {
			fields[models.FieldApprovedAt] = now
		}
		if adminComment != "" {
			fields[models.FieldAdminComment] = adminComment
		}
		if status == models.StatusRejected {
			fields[models.FieldRejectionReason] = adminComment
		} else if current.RejectionReason != "" {
			// Leaving REJECTED discards the old rejection so the listing
			// doesn't carry a stale reason (or its comment) forward.
			fields[models.FieldRejectionReason] = ""
			if adminComment == "" {
				fields[models.FieldAdminComment] = ""
			}
		}
		tx.Update(productDoc(productID), fields)
		return nil
	}))
}

// Reactivate moves a PAUSED or SOLD listing back to APPROVED, touching
// only the status field. Reactivating an APPROVED listing is rejected.
func (r *marketRepository) Reactivate(ctx context.Context, actorID, productID string) error {
	return wrapRemote(r.store.RunTransaction(ctx, func(tx store.Transaction) error {
		snap, err := tx.Get(productDoc(productID))
		if err != nil {
			return err
		}
		if !snap.Exists {
			return models.NewNotFoundError("product", productID)
		}
		var current models.Product
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if current.SellerID != actorID && !r.authz.IsAdmin(actorID) {
			return models.NewPermissionError("only the seller or an admin may reactivate a listing")
		}
		if current.Status != models.StatusPaused && current.Status != models.StatusSold {
			return models.NewValidationError("only paused or sold listings can be reactivated")
		}
		tx.Update(productDoc(productID), map[string]any{models.FieldStatus: models.StatusApproved})
		return nil
	}))
}

func (r *marketRepository) ProductFavorited(ctx context.Context, productID, userID string) (<-chan bool, error) {
	in, err := r.store.SubscribeDoc(ctx, productFavDoc(userID, productID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		for snap := range in {
			select {
			case out <- snap.Exists:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// FavoriteProduct creates the composite-key record and increments the
// product's favorite counter exactly once; duplicates are no-ops.
func (r *marketRepository) FavoriteProduct(ctx context.Context, productID, userID string) error {
	return wrapRemote(r.store.RunTransaction(ctx, func(tx store.Transaction) error {
		productSnap, err := tx.Get(productDoc(productID))
		if err != nil {
			return err
		}
		if !productSnap.Exists {
			return models.NewNotFoundError("product", productID)
		}
		doc := productFavDoc(userID, productID)
		favSnap, err := tx.Get(doc)
		if err != nil {
			return err
		}
		if favSnap.Exists {
			return nil
		}
		fav := models.Favorite{
			ID:        doc.ID,
			UserID:    userID,
			TargetID:  productID,
			CreatedAt: time.Now().UTC(),
		}
		data, err := store.DataFrom(fav)
		if err != nil {
			return err
		}
		tx.Set(doc, data)
		tx.Update(productDoc(productID), map[string]any{models.FieldFavoriteCount: store.Increment(1)})
		return nil
	}))
}

func (r *marketRepository) UnfavoriteProduct(ctx context.Context, productID, userID string) error {
	return wrapRemote(r.store.RunTransaction(ctx, func(tx store.Transaction) error {
		doc := productFavDoc(userID, productID)
		favSnap, err := tx.Get(doc)
		if err != nil {
			return err
		}
		if !favSnap.Exists {
			return nil
		}
		tx.Delete(doc)
		productSnap, err := tx.Get(productDoc(productID))
		if err != nil {
			return err
		}
		if productSnap.Exists {
			tx.Update(productDoc(productID), map[string]any{models.FieldFavoriteCount: store.Increment(-1)})
		}
		return nil
	}))
}

func (r *marketRepository) FavoriteProducts(ctx context.Context, userID string) (<-chan []models.Product, error) {
	q := store.NewQuery(models.ColProductFavorites).
		Where("userId", store.OpEqual, userID).
		OrderBy("createdAt", store.Desc)
	in, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan []models.Product, 1)
	go func() {
		defer close(out)
		for snap := range in {
			favs := decodeAll[models.Favorite](snap, r.log, "favorite")
			ids := make([]string, 0, len(favs))
			for _, f := range favs {
				ids = append(ids, f.TargetID)
			}
			products, err := r.productsByIDs(ctx, ids)
			if err != nil {
				r.log.Warn("favorite products fetch failed", "user", userID, "error", err)
				return
			}
			select {
			case out <- products:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *marketRepository) productsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	var products []models.Product
	for _, chunk := range chunkIDs(ids, inFilterLimit) {
		snaps, err := r.store.Documents(ctx, store.NewQuery(models.ColProducts).Where("id", store.OpIn, chunk))
		if err != nil {
			return nil, err
		}
		products = append(products, decodeAll[models.Product](snaps, r.log, "product")...)
	}
	sort.SliceStable(products, func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) })
	return products, nil
}

func (r *marketRepository) Reviews(ctx context.Context, productID string) (<-chan []models.ProductReview, error) {
	q := store.NewQuery(models.ColProductReviews).
		Where("productId", store.OpEqual, productID).
		OrderBy("createdAt", store.Asc)
	in, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, wrapRemote(err)
	}
	out := make(chan []models.ProductReview, 1)
	go func() {
		defer close(out)
		for snap := range in {
			select {
			case out <- decodeAll[models.ProductReview](snap, r.log, "review"):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *marketRepository) AddReview(ctx context.Context, authorID, productID string, rating int, text string) (*models.ProductReview, error) {
	if rating < 1 || rating > 5 {
		return nil, models.NewValidationError("rating must be between 1 and 5")
	}
	if _, err := r.getProduct(ctx, productID); err != nil {
		return nil, err
	}
	review := models.ProductReview{
		ID:        r.store.NewID(),
		ProductID: productID,
		AuthorID:  authorID,
		Rating:    rating,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	data, err := store.DataFrom(review)
	if err != nil {
		return nil, wrapRemote(err)
	}
	if err := r.store.Set(ctx, reviewDoc(review.ID), data); err != nil {
		return nil, wrapRemote(err)
	}
	return &review, nil
}

func (r *marketRepository) UpdateReview(ctx context.Context, actorID string, review models.ProductReview) error {
	current, err := r.getReview(ctx, review.ID)
	if err != nil {
		return err
	}
	if current.AuthorID != actorID {
		return models.NewPermissionError("only the review author may edit a review")
	}
	if review.Rating < 1 || review.Rating > 5 {
		return models.NewValidationError("rating must be between 1 and 5")
	}
	return wrapRemote(r.store.Update(ctx, reviewDoc(review.ID), map[string]any{
		"rating": review.Rating,
		"text":   review.Text,
	}))
}

func (r *marketRepository) DeleteReview(ctx context.Context, actorID, reviewID string) error {
	current, err := r.getReview(ctx, reviewID)
	if err != nil {
		return err
	}
	if current.AuthorID != actorID && !r.authz.IsAdmin(actorID) {
		return models.NewPermissionError("only the review author or an admin may delete a review")
	}
	return wrapRemote(r.store.Delete(ctx, reviewDoc(reviewID)))
}

func (r *marketRepository) getReview(ctx context.Context, reviewID string) (*models.ProductReview, error) {
	snap, err := r.store.Get(ctx, reviewDoc(reviewID))
	if err != nil {
		return nil, wrapRemote(err)
	}
	if !snap.Exists {
		return nil, models.NewNotFoundError("review", reviewID)
	}
	var review models.ProductReview
	if err := snap.DataTo(&review); err != nil {
		return nil, wrapRemote(err)
	}
	return &review, nil
}

func (r *marketRepository) IncrementViews(ctx context.Context, productID string) error {
	err := r.store.Update(ctx, productDoc(productID), map[string]any{models.FieldViewCount: store.Increment(1)})
	if err == store.ErrNotFound {
		return models.NewNotFoundError("product", productID)
	}
	return wrapRemote(err)
}

// SellerStats derives the aggregate from the live per-seller product
// list; it is never read from a stored aggregate.
func (r *marketRepository) SellerStats(ctx context.Context, sellerID string) (<-chan models.SellerStats, error) {
	products, err := r.SellerProducts(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	out := make(chan models.SellerStats, 1)
	go func() {
		defer close(out)
		for list := range products {
			stats := models.SellerStats{CountByStatus: make(map[models.ProductStatus]int)}
			for _, p := range list {
				stats.Total++
				stats.CountByStatus[p.Status]++
				stats.TotalViews += p.ViewCount
				stats.TotalFavorites += p.FavoriteCount
			}
			select {
			case out <- stats:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Categories lists the distinct non-empty categories across APPROVED
// listings, sorted.
func (r *marketRepository) Categories(ctx context.Context) ([]string, error) {
	snaps, err := r.store.Documents(ctx, store.NewQuery(models.ColProducts).
		Where(models.FieldStatus, store.OpEqual, models.StatusApproved))
	if err != nil {
		return nil, wrapRemote(err)
	}
	seen := make(map[string]struct{})
	var categories []string
	for _, p := range decodeAll[models.Product](snaps, r.log, "product") {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// UpdateSellerProfileImage reconciles the denormalized seller avatar:
// the profile document and every owned listing update in one batch.
func (r *marketRepository) UpdateSellerProfileImage(ctx context.Context, sellerID, avatarURL string) error {
	snaps, err := r.store.Documents(ctx, store.NewQuery(models.ColProducts).Where("sellerId", store.OpEqual, sellerID))
	if err != nil {
		return wrapRemote(err)
	}
	batch := r.store.Batch().Update(userDoc(sellerID), map[string]any{"avatar": avatarURL})
	for _, s := range snaps {
		batch.Update(s.Doc, map[string]any{models.FieldSellerAvatar: avatarURL})
	}
	return wrapRemote(batch.Commit(ctx))
}
