package ledger

import (
	"sync"
	"testing"

	"github.com/anjiri1684/skillcoin/models"
)

func TestBuyCourseMovesCoinsAndRecordsPurchase(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student", models.RoleStudent, 1000)
	f.user(t, "teacher", models.RoleTeacher, 0)
	f.course(t, "c1", "teacher", 150)
	before := f.totalCoins(t)

	res, err := f.core.BuyCourse(bg, "student", "c1")
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if res.PurchaseID != "student_c1" || res.Price != 150 || res.Coins != 850 {
		t.Fatalf("result: got %+v", res)
	}
	if got := f.reload(t, "student").Coins; got != 850 {
		t.Fatalf("student coins: want=850 got=%d", got)
	}
	if got := f.reload(t, "teacher").Coins; got != 150 {
		t.Fatalf("teacher coins: want=150 got=%d", got)
	}
	if after := f.totalCoins(t); after != before {
		t.Fatalf("coin supply changed: before=%d after=%d", before, after)
	}

	var p models.Purchase
	if err := f.db.First(&p, "id = ?", "student_c1").Error; err != nil {
		t.Fatalf("purchase row: %v", err)
	}
	if p.TeacherID != "teacher" || p.Price != 150 || !p.PurchasedAt.Equal(f.now) {
		t.Fatalf("purchase: got %+v", p)
	}

	var tr models.CoinTransfer
	if err := f.db.First(&tr, "reference = ?", "student_c1").Error; err != nil {
		t.Fatalf("transfer row: %v", err)
	}
	if tr.FromUserID != "student" || tr.ToUserID != "teacher" || tr.Amount != 150 || tr.Reason != models.ReasonCoursePurchase {
		t.Fatalf("transfer: got %+v", tr)
	}

	if got := f.notifier.types("teacher"); len(got) != 1 || got[0] != EventCoinsChanged {
		t.Fatalf("teacher events: got %v", got)
	}
	if got := f.hooks.observed["ledger.buyCourse"]; len(got) != 1 || got[0] != "success" {
		t.Fatalf("observed: got %v", got)
	}
}

func TestBuyCourseInsufficientCoinsWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student", models.RoleStudent, 100)
	f.user(t, "teacher", models.RoleTeacher, 0)
	f.course(t, "c1", "teacher", 150)

	_, err := f.core.BuyCourse(bg, "student", "c1")
	wantKind(t, err, KindFailedPrecondition)
	if msg := PublicMessage(err); msg != "Insufficient coins to purchase this course." {
		t.Fatalf("message: got %q", msg)
	}
	if got := f.reload(t, "student").Coins; got != 100 {
		t.Fatalf("student coins: want=100 got=%d", got)
	}
	if n := f.count(t, &models.Purchase{}); n != 0 {
		t.Fatalf("purchases: want=0 got=%d", n)
	}
	if n := f.count(t, &models.CoinTransfer{}); n != 0 {
		t.Fatalf("transfers: want=0 got=%d", n)
	}
}

func TestBuyCourseRejections(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student", models.RoleStudent, 1000)
	f.user(t, "teacher", models.RoleTeacher, 0)
	f.course(t, "c1", "teacher", 10)

	cases := []struct {
		name    string
		student string
		course  string
		want    Kind
	}{
		{"anonymous", "", "c1", KindUnauthenticated},
		{"missing course id", "student", " ", KindInvalidArgument},
		{"unknown course", "student", "nope", KindNotFound},
		{"own course", "teacher", "c1", KindInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.core.BuyCourse(bg, tc.student, tc.course)
			wantKind(t, err, tc.want)
		})
	}
}

func TestBuyCourseMissingTeacherIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student", models.RoleStudent, 10)
	f.course(t, "orphan", "ghost", 500)

	_, err := f.core.BuyCourse(bg, "student", "orphan")
	wantKind(t, err, KindNotFound)
}

func TestBuyCourseTwiceIsAlreadyExists(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student", models.RoleStudent, 1000)
	f.user(t, "teacher", models.RoleTeacher, 0)
	f.course(t, "c1", "teacher", 100)

	if _, err := f.core.BuyCourse(bg, "student", "c1"); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	_, err := f.core.BuyCourse(bg, "student", "c1")
	wantKind(t, err, KindAlreadyExists)
	if got := f.reload(t, "student").Coins; got != 900 {
		t.Fatalf("student charged twice: coins=%d", got)
	}
}

func TestConcurrentBuysChargeOnce(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student", models.RoleStudent, 150)
	f.user(t, "teacher", models.RoleTeacher, 0)
	f.course(t, "c1", "teacher", 100)
	f.course(t, "c2", "teacher", 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.core.BuyCourse(bg, "student", id)
		}(i, id)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		wantKind(t, err, KindFailedPrecondition)
	}
	if ok != 1 {
		t.Fatalf("successful buys: want=1 got=%d (%v)", ok, errs)
	}
	if got := f.reload(t, "student").Coins; got != 50 {
		t.Fatalf("student coins: want=50 got=%d", got)
	}
	if got := f.reload(t, "teacher").Coins; got != 100 {
		t.Fatalf("teacher coins: want=100 got=%d", got)
	}
}

func TestFreeCourseRecordsPurchaseWithoutTransfer(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student", models.RoleStudent, 0)
	f.user(t, "teacher", models.RoleTeacher, 0)
	f.course(t, "free", "teacher", 0)

	if _, err := f.core.BuyCourse(bg, "student", "free"); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if n := f.count(t, &models.Purchase{}); n != 1 {
		t.Fatalf("purchases: want=1 got=%d", n)
	}
	if n := f.count(t, &models.CoinTransfer{}); n != 0 {
		t.Fatalf("transfers: want=0 got=%d", n)
	}
}
