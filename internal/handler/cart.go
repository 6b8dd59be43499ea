package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/skillmarket/cart-service/internal/domain/cart"
)

func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	owner := h.owner(w, r)

	view, err := h.carts.ViewCart(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if view == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	e := &jx.Encoder{}
	encodeView(e, view)
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) countItems(w http.ResponseWriter, r *http.Request) {
	owner := h.owner(w, r)

	n, err := h.carts.CountItems(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("count", func(e *jx.Encoder) { e.Int(n) })
	})
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	owner := h.owner(w, r)

	courseID, err := decodeCourseID(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.carts.AddToCart(r.Context(), owner, courseID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	owner := h.owner(w, r)

	courseID, err := strconv.Atoi(r.PathValue("courseID"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid course id")
		return
	}

	if err := h.carts.RemoveFromCart(r.Context(), owner, courseID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	owner := h.owner(w, r)

	if err := h.carts.ClearCart(r.Context(), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeCourseID parses {"courseId": <int>} from the request body.
func decodeCourseID(body io.Reader) (int, error) {
	raw, err := io.ReadAll(io.LimitReader(body, 1<<10))
	if err != nil {
		return 0, err
	}

	var courseID int
	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "courseId" {
			return d.Skip()
		}
		id, err := d.Int()
		if err != nil {
			return err
		}
		courseID = id
		return nil
	}); err != nil {
		return 0, err
	}
	if courseID == 0 {
		return 0, errInvalidBody
	}
	return courseID, nil
}

func encodeView(e *jx.Encoder, view *cart.View) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range view.Items {
					encodeItem(e, &view.Items[i])
				}
			})
		})
		e.Field("totalPrice", func(e *jx.Encoder) {
			e.Num(jx.Num(view.TotalPrice.String()))
		})
	})
}

func encodeItem(e *jx.Encoder, item *cart.ItemView) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("course", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int(item.Course.ID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(item.Course.Title) })
				e.Field("imageUrl", func(e *jx.Encoder) { e.Str(item.Course.ImageURL) })
			})
		})
		e.Field("instructors", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, ins := range item.Instructors {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int(ins.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(ins.Name) })
						e.Field("headline", func(e *jx.Encoder) { e.Str(ins.Headline) })
					})
				}
			})
		})
		e.Field("rating", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("average", func(e *jx.Encoder) { e.Float64(item.Review.Average) })
				e.Field("count", func(e *jx.Encoder) { e.Int(item.Review.Count) })
			})
		})
		e.Field("basePrice", func(e *jx.Encoder) {
			e.Num(jx.Num(item.Quote.BasePrice.String()))
		})
		if d := item.Quote.Discount; d != nil {
			e.Field("discountId", func(e *jx.Encoder) { e.Int(d.ID) })
		}
		if c := item.Quote.Coupon; c != nil {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(c.Code) })
		}
		e.Field("finalPrice", func(e *jx.Encoder) {
			e.Num(jx.Num(item.Quote.FinalPrice.String()))
		})
	})
}
