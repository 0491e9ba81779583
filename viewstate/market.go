package viewstate

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"agora/identity"
	"agora/models"
	"agora/repository"
)

// BrowseState is the marketplace listing slice: the approved catalog,
// narrowed by the current search when one is active.
type BrowseState struct {
	Products []models.Product
	Search   repository.SearchParams
	Loading  bool
	Err      string
	Notice   string
}

// ProductDetailState is the single-listing slice.
type ProductDetailState struct {
	Product   models.Product
	Exists    bool
	Reviews   []models.ProductReview
	Favorited bool
	Loading   bool
	Err       string
	Notice    string
}

// PendingState is the admin approval queue slice. It stays empty for
// non-admin viewers.
type PendingState struct {
	Products []models.Product
	Err      string
}

// SellerState is the viewer's own-listings slice with its derived
// aggregate.
type SellerState struct {
	Products []models.Product
	Stats    models.SellerStats
	Err      string
}

// ApprovalDialog is the admin approve/reject dialog. A rejection needs
// a non-blank comment before any remote call is made.
type ApprovalDialog struct {
	Open      bool
	ProductID string
	Reject    bool
	Comment   string
	Err       string
}

// Market manages the marketplace view state: browsing and search,
// listing detail, favorites, the viewer's own listings, and the admin
// approval queue.
type Market struct {
	repo  repository.MarketRepository
	ids   identity.Provider
	authz identity.Authorizer
	log   *slog.Logger

	mu        sync.Mutex
	browse    BrowseState
	detail    ProductDetailState
	detailID  string
	pending   PendingState
	seller    SellerState
	favorites FavoritesState
	dialog    ApprovalDialog
	favFlags  map[string]bool
	viewed    map[string]bool

	browseSub  subscription
	detailSub  subscription
	pendingSub subscription
	sellerSub  subscription
	favSub     subscription
	updates    chan struct{}
}

// FavoritesState is the viewer's saved-listings slice.
type FavoritesState struct {
	Products []models.Product
	Err      string
}

// NewMarket creates a marketplace view-state manager.
func NewMarket(repo repository.MarketRepository, ids identity.Provider, authz identity.Authorizer, log *slog.Logger) *Market {
	if log == nil {
		log = slog.Default()
	}
	return &Market{
		repo:     repo,
		ids:      ids,
		authz:    authz,
		log:      log,
		favFlags: make(map[string]bool),
		viewed:   make(map[string]bool),
		updates:  make(chan struct{}, 1),
	}
}

// Updates signals after every state change; emissions coalesce.
func (m *Market) Updates() <-chan struct{} { return m.updates }

func (m *Market) signal() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// IsAdmin reports whether the current viewer may run the approval queue.
func (m *Market) IsAdmin(ctx context.Context) bool {
	userID, ok := m.ids.CurrentUserID(ctx)
	return ok && m.authz.IsAdmin(userID)
}

// BrowseSnapshot returns a copy of the browse slice.
func (m *Market) BrowseSnapshot() BrowseState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.browse
	s.Products = append([]models.Product(nil), m.browse.Products...)
	return s
}

// DetailSnapshot returns a copy of the listing detail slice.
func (m *Market) DetailSnapshot() ProductDetailState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.detail
	s.Reviews = append([]models.ProductReview(nil), m.detail.Reviews...)
	return s
}

// PendingSnapshot returns a copy of the approval queue slice.
func (m *Market) PendingSnapshot() PendingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.pending
	s.Products = append([]models.Product(nil), m.pending.Products...)
	return s
}

// SellerSnapshot returns a copy of the own-listings slice.
func (m *Market) SellerSnapshot() SellerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.seller
	s.Products = append([]models.Product(nil), m.seller.Products...)
	return s
}

// FavoritesSnapshot returns a copy of the saved-listings slice.
func (m *Market) FavoritesSnapshot() FavoritesState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.favorites
	s.Products = append([]models.Product(nil), m.favorites.Products...)
	return s
}

// DialogSnapshot returns the approval dialog slice.
func (m *Market) DialogSnapshot() ApprovalDialog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dialog
}

// Favorited reports the viewer's favorite flag for a listing row.
func (m *Market) Favorited(productID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.favFlags[productID]
}

// SetSearch replaces the browse stream: empty params restore the full
// approved catalog, anything else narrows it. The latest call wins.
func (m *Market) SetSearch(ctx context.Context, params repository.SearchParams) error {
	m.mu.Lock()
	subCtx, gen := m.browseSub.next(ctx)
	m.browse.Search = params
	m.browse.Loading = true
	m.browse.Err = ""
	m.mu.Unlock()
	m.signal()

	var (
		ch  <-chan []models.Product
		err error
	)
	if params.IsZero() {
		ch, err = m.repo.Products(subCtx, models.StatusApproved)
	} else {
		ch, err = m.repo.Search(subCtx, params)
	}
	if err != nil {
		m.mu.Lock()
		if m.browseSub.gen == gen {
			m.browse.Loading = false
			m.browse.Err = err.Error()
		}
		m.mu.Unlock()
		m.signal()
		return err
	}
	go func() {
		for products := range ch {
			m.mu.Lock()
			if m.browseSub.gen != gen {
				m.mu.Unlock()
				return
			}
			m.browse.Products = products
			m.browse.Loading = false
			m.browse.Err = ""
			m.mu.Unlock()
			m.signal()
		}
	}()
	return nil
}

// LoadBrowse subscribes the browse slice to the full approved catalog.
func (m *Market) LoadBrowse(ctx context.Context) error {
	return m.SetSearch(ctx, repository.SearchParams{})
}

// LoadPending subscribes the approval queue. Non-admin viewers get a
// permission error and no remote subscription.
func (m *Market) LoadPending(ctx context.Context) error {
	if !m.IsAdmin(ctx) {
		err := models.NewPermissionError("the approval queue is admin-only")
		m.mu.Lock()
		m.pending.Err = err.Error()
		m.mu.Unlock()
		m.signal()
		return err
	}
	m.mu.Lock()
	subCtx, gen := m.pendingSub.next(ctx)
	m.pending.Err = ""
	m.mu.Unlock()

	ch, err := m.repo.PendingApproval(subCtx)
	if err != nil {
		m.mu.Lock()
		m.pending.Err = err.Error()
		m.mu.Unlock()
		m.signal()
		return err
	}
	go func() {
		for products := range ch {
			m.mu.Lock()
			if m.pendingSub.gen != gen {
				m.mu.Unlock()
				return
			}
			m.pending.Products = products
			m.mu.Unlock()
			m.signal()
		}
	}()
	return nil
}

// LoadSeller subscribes the viewer's own listings plus the derived
// stats aggregate.
func (m *Market) LoadSeller(ctx context.Context) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		err := models.NewPermissionError("sign in to manage listings")
		m.mu.Lock()
		m.seller.Err = err.Error()
		m.mu.Unlock()
		m.signal()
		return err
	}
	m.mu.Lock()
	subCtx, gen := m.sellerSub.next(ctx)
	m.seller.Err = ""
	m.mu.Unlock()

	productCh, err := m.repo.SellerProducts(subCtx, userID)
	if err != nil {
		return m.sellerErr(err)
	}
	statsCh, err := m.repo.SellerStats(subCtx, userID)
	if err != nil {
		return m.sellerErr(err)
	}
	go func() {
		for products := range productCh {
			m.mu.Lock()
			if m.sellerSub.gen != gen {
				m.mu.Unlock()
				return
			}
			m.seller.Products = products
			m.mu.Unlock()
			m.signal()
		}
	}()
	go func() {
		for stats := range statsCh {
			m.mu.Lock()
			if m.sellerSub.gen != gen {
				m.mu.Unlock()
				return
			}
			m.seller.Stats = stats
			m.mu.Unlock()
			m.signal()
		}
	}()
	return nil
}

func (m *Market) sellerErr(err error) error {
	m.mu.Lock()
	m.seller.Err = err.Error()
	m.mu.Unlock()
	m.signal()
	return err
}

// LoadFavorites subscribes the viewer's saved listings.
func (m *Market) LoadFavorites(ctx context.Context) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		err := models.NewPermissionError("sign in to see saved listings")
		m.mu.Lock()
		m.favorites.Err = err.Error()
		m.mu.Unlock()
		m.signal()
		return err
	}
	m.mu.Lock()
	subCtx, gen := m.favSub.next(ctx)
	m.favorites.Err = ""
	m.mu.Unlock()

	ch, err := m.repo.FavoriteProducts(subCtx, userID)
	if err != nil {
		m.mu.Lock()
		m.favorites.Err = err.Error()
		m.mu.Unlock()
		m.signal()
		return err
	}
	go func() {
		// Flags set by an earlier emission must clear when the product
		// leaves the favorites list, e.g. an unfavorite from another
		// device.
		prev := make(map[string]struct{})
		for products := range ch {
			m.mu.Lock()
			if m.favSub.gen != gen {
				m.mu.Unlock()
				return
			}
			m.favorites.Products = products
			next := make(map[string]struct{}, len(products))
			for _, p := range products {
				m.favFlags[p.ID] = true
				next[p.ID] = struct{}{}
			}
			for id := range prev {
				if _, ok := next[id]; !ok {
					delete(m.favFlags, id)
					if m.detailID == id {
						m.detail.Favorited = false
					}
				}
			}
			prev = next
			m.mu.Unlock()
			m.signal()
		}
	}()
	return nil
}

// OpenProduct subscribes the detail slice to one listing, its reviews
// and the viewer's favorite flag, and bumps the view counter once per
// manager lifetime for that listing.
func (m *Market) OpenProduct(ctx context.Context, productID string) error {
	userID, _ := m.ids.CurrentUserID(ctx)

	m.mu.Lock()
	subCtx, gen := m.detailSub.next(ctx)
	m.detailID = productID
	m.detail = ProductDetailState{Loading: true}
	firstView := !m.viewed[productID]
	m.viewed[productID] = true
	m.mu.Unlock()
	m.signal()

	productCh, err := m.repo.ProductByID(subCtx, productID)
	if err != nil {
		return m.failDetail(gen, err)
	}
	reviewCh, err := m.repo.Reviews(subCtx, productID)
	if err != nil {
		return m.failDetail(gen, err)
	}

	go func() {
		for snap := range productCh {
			m.mu.Lock()
			if m.detailSub.gen != gen {
				m.mu.Unlock()
				return
			}
			m.detail.Product = snap.Product
			m.detail.Exists = snap.Exists
			m.detail.Loading = false
			m.mu.Unlock()
			m.signal()
		}
	}()
	go func() {
		for reviews := range reviewCh {
			m.mu.Lock()
			if m.detailSub.gen != gen {
				m.mu.Unlock()
				return
			}
			m.detail.Reviews = reviews
			m.mu.Unlock()
			m.signal()
		}
	}()

	if userID != "" {
		favCh, err := m.repo.ProductFavorited(subCtx, productID, userID)
		if err != nil {
			return m.failDetail(gen, err)
		}
		go func() {
			for fav := range favCh {
				m.mu.Lock()
				if m.detailSub.gen != gen {
					m.mu.Unlock()
					return
				}
				m.detail.Favorited = fav
				m.favFlags[productID] = fav
				m.mu.Unlock()
				m.signal()
			}
		}()
	}

	if firstView {
		if err := m.repo.IncrementViews(ctx, productID); err != nil {
			// View counting is best-effort; the detail stays usable.
			m.log.Warn("view count increment failed", "product", productID, "error", err)
		}
	}
	return nil
}

func (m *Market) failDetail(gen uint64, err error) error {
	m.mu.Lock()
	if m.detailSub.gen == gen {
		m.detail.Loading = false
		m.detail.Err = err.Error()
	}
	m.mu.Unlock()
	m.signal()
	return err
}

// CloseProduct releases the detail subscriptions and clears the slice.
func (m *Market) CloseProduct() {
	m.mu.Lock()
	m.detailSub.stop()
	m.detailID = ""
	m.detail = ProductDetailState{}
	m.mu.Unlock()
	m.signal()
}

// ToggleFavorite flips the favorite flag optimistically; on failure the
// flip rolls back and the error message lands on the relevant slice.
func (m *Market) ToggleFavorite(ctx context.Context, productID string) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return m.toggleErr(productID, models.NewPermissionError("sign in to save listings"))
	}

	m.mu.Lock()
	var was bool
	if m.detailID == productID {
		was = m.detail.Favorited
	} else {
		was = m.favFlags[productID]
	}
	m.favFlags[productID] = !was
	if m.detailID == productID {
		m.detail.Favorited = !was
	}
	m.mu.Unlock()
	m.signal()

	var err error
	if was {
		err = m.repo.UnfavoriteProduct(ctx, productID, userID)
	} else {
		err = m.repo.FavoriteProduct(ctx, productID, userID)
	}
	if err != nil {
		m.mu.Lock()
		m.favFlags[productID] = was
		if m.detailID == productID {
			m.detail.Favorited = was
		}
		m.mu.Unlock()
		return m.toggleErr(productID, err)
	}
	return nil
}

func (m *Market) toggleErr(productID string, err error) error {
	m.mu.Lock()
	if m.detailID == productID {
		m.detail.Err = err.Error()
	} else {
		m.browse.Err = err.Error()
	}
	m.mu.Unlock()
	m.signal()
	return err
}

// OpenApproval opens the approve/reject dialog for a pending listing.
func (m *Market) OpenApproval(productID string, reject bool) {
	m.mu.Lock()
	m.dialog = ApprovalDialog{Open: true, ProductID: productID, Reject: reject}
	m.mu.Unlock()
	m.signal()
}

// SetApprovalComment updates the dialog's comment text.
func (m *Market) SetApprovalComment(comment string) {
	m.mu.Lock()
	m.dialog.Comment = comment
	m.dialog.Err = ""
	m.mu.Unlock()
	m.signal()
}

// CloseApproval discards the dialog.
func (m *Market) CloseApproval() {
	m.mu.Lock()
	m.dialog = ApprovalDialog{}
	m.mu.Unlock()
	m.signal()
}

// ConfirmApproval applies the dialog's decision. A rejection with a
// blank comment fails locally; nothing reaches the remote store.
func (m *Market) ConfirmApproval(ctx context.Context) error {
	m.mu.Lock()
	dialog := m.dialog
	m.mu.Unlock()

	if !dialog.Open {
		return models.NewValidationError("no approval dialog open")
	}
	if dialog.Reject && strings.TrimSpace(dialog.Comment) == "" {
		err := models.NewValidationError("a rejection requires a comment")
		m.mu.Lock()
		m.dialog.Err = err.Error()
		m.mu.Unlock()
		m.signal()
		return err
	}

	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		err := models.NewPermissionError("sign in to review listings")
		m.mu.Lock()
		m.dialog.Err = err.Error()
		m.mu.Unlock()
		m.signal()
		return err
	}

	status := models.StatusApproved
	if dialog.Reject {
		status = models.StatusRejected
	}
	if err := m.repo.UpdateProductStatus(ctx, userID, dialog.ProductID, status, dialog.Comment); err != nil {
		m.mu.Lock()
		m.dialog.Err = err.Error()
		m.mu.Unlock()
		m.signal()
		return err
	}

	m.mu.Lock()
	m.dialog = ApprovalDialog{}
	if dialog.Reject {
		m.pending.Err = ""
	}
	m.mu.Unlock()
	m.signal()
	return nil
}

// SetStatus moves one of the viewer's listings to a new status, e.g.
// pausing or marking it sold.
func (m *Market) SetStatus(ctx context.Context, productID string, status models.ProductStatus) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return m.sellerErr(models.NewPermissionError("sign in to manage listings"))
	}
	if err := m.repo.UpdateProductStatus(ctx, userID, productID, status, ""); err != nil {
		return m.sellerErr(err)
	}
	return nil
}

// Reactivate returns one of the viewer's paused or sold listings to the
// approved catalog.
func (m *Market) Reactivate(ctx context.Context, productID string) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return m.sellerErr(models.NewPermissionError("sign in to manage listings"))
	}
	if err := m.repo.Reactivate(ctx, userID, productID); err != nil {
		return m.sellerErr(err)
	}
	return nil
}

// SubmitListing validates a new listing draft and creates it in PENDING
// state.
func (m *Market) SubmitListing(ctx context.Context, draft models.ProductDraft) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return m.sellerErr(models.NewPermissionError("sign in to sell"))
	}
	if strings.TrimSpace(draft.Title) == "" {
		return m.sellerErr(models.NewValidationError("a listing needs a title"))
	}
	if draft.Price.IsNegative() {
		return m.sellerErr(models.NewValidationError("price cannot be negative"))
	}
	draft.SellerID = userID
	if _, err := m.repo.CreateProduct(ctx, draft); err != nil {
		return m.sellerErr(err)
	}
	m.mu.Lock()
	m.seller.Err = ""
	m.mu.Unlock()
	m.signal()
	return nil
}

// SaveListing applies an edit to one of the viewer's listings.
func (m *Market) SaveListing(ctx context.Context, product models.Product) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return m.sellerErr(models.NewPermissionError("sign in to manage listings"))
	}
	if strings.TrimSpace(product.Title) == "" {
		return m.sellerErr(models.NewValidationError("a listing needs a title"))
	}
	if err := m.repo.UpdateProduct(ctx, userID, product); err != nil {
		return m.sellerErr(err)
	}
	return nil
}

// DeleteListing removes a listing; when it was the open detail, the
// detail slice clears and surfaces a success message.
func (m *Market) DeleteListing(ctx context.Context, productID string) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return m.sellerErr(models.NewPermissionError("sign in to manage listings"))
	}
	if err := m.repo.DeleteProduct(ctx, userID, productID); err != nil {
		return m.toggleErr(productID, err)
	}
	m.mu.Lock()
	if m.detailID == productID {
		m.detailSub.stop()
		m.detailID = ""
		m.detail = ProductDetailState{Notice: "Listing deleted"}
	} else {
		m.browse.Notice = "Listing deleted"
	}
	m.mu.Unlock()
	m.signal()
	return nil
}

// AddReview posts a review on the open detail.
func (m *Market) AddReview(ctx context.Context, rating int, text string) error {
	userID, ok := m.ids.CurrentUserID(ctx)
	if !ok {
		return m.detailErr(models.NewPermissionError("sign in to review"))
	}
	m.mu.Lock()
	productID := m.detailID
	m.mu.Unlock()
	if productID == "" {
		return m.detailErr(models.NewValidationError("no listing open"))
	}
	if _, err := m.repo.AddReview(ctx, userID, productID, rating, text); err != nil {
		return m.detailErr(err)
	}
	return nil
}

func (m *Market) detailErr(err error) error {
	m.mu.Lock()
	m.detail.Err = err.Error()
	m.mu.Unlock()
	m.signal()
	return err
}

// Close releases every live subscription held by the manager.
func (m *Market) Close() {
	m.mu.Lock()
	m.browseSub.stop()
	m.detailSub.stop()
	m.pendingSub.stop()
	m.sellerSub.stop()
	m.favSub.stop()
	m.mu.Unlock()
}
