/*
Package redisq provides a queue.Queue of record batches backed by redis,
so that several processes can share the classification work.
*/
package redisq

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	redis "gopkg.in/redis.v5"

	"github.com/pbanos/flowtree/queue"
)

/*
EncodeDecoder is an interface for objects
that allow encoding batches as slices of bytes and decoding
them back to batches. It is used to serialize batches into a
representation to store on redis
*/
type EncodeDecoder interface {

	//Encode receives a *queue.Batch
	//and returns a slice of bytes with the batch encoded or an
	//error if the encoding could not be performed for
	//some reason.
	Encode(context.Context, *queue.Batch) ([]byte, error)

	//Decode receives a slice of bytes
	//and returns a *queue.Batch decoded from the slice of bytes
	//or an error if the decoding could not be performed
	//for some reason.
	Decode(context.Context, []byte) (*queue.Batch, error)
}

type redisQ struct {
	id          string
	rc          *redis.Client
	allBatchCtx context.Context
	allBatchCF  context.CancelFunc
	batchMaxRun time.Duration
	lockTTL     time.Duration
	cancelLock  sync.Mutex
	cancels     map[string]context.CancelFunc
	EncodeDecoder
}

const lockReleaseScript = `
if redis.call("GET",KEYS[1]) == ARGV[1] then
    return redis.call("DEL",KEYS[1])
else
    return 0
end
`

// pullScript moves a batch from the pending sorted set to the running set.
const pullScript = `
if redis.call("ZREM", KEYS[1], ARGV[1]) == 1 then
    redis.call("SADD", KEYS[2], ARGV[1])
    return 1
end
return 0
`

// dropScript moves a batch from the running set back to the pending
// sorted set, scored with the sequence number it got when pushed.
const dropScript = `
if redis.call("SREM", KEYS[1], ARGV[1]) == 1 then
    redis.call("ZADD", KEYS[2], redis.call("GET", KEYS[3]) or 0, ARGV[1])
    return 1
end
return 0
`

const lockAttempts = 5
const failToLockSleep = 10 * time.Millisecond

/*
New returns a queue.Queue that uses the given redis client as a
backend. It uses the given id to prefix the keys used on the
redis client to keep the queue's data, which are the following:
  - id:pending is the key to a sorted set with the ids of the pending
    batches, scored by their push sequence number so they are pulled
    in the order they were pushed, even after being dropped
  - id:running is the key to a set with the ids of the running batches
  - id:seq is the key to the counter giving every pushed batch its
    sequence number
  - id:batch:batch_id:data is the key to a string that holds the batch data.
    Batches are encoded and decoded using the given EncodeDecoder.
  - id:batch:batch_id:seq is the key to the sequence number of the batch
  - id:batch:batch_id:lock implements a lock for exclusive management of a
    batch on the queue. It is set to expire in the given lockTTL duration
  - id:batch:batch_id:running implements a mark to set the batch is already
    running, that expires in the given batchMaxRun duration. Once the key
    expires a cleanup process will understand the batch was dropped by a
    failing worker. Setting it to the zero value prevents the key from
    expiring and the cleanup process from taking place at all.

The returned queue is secure for concurrent use by multiple goroutines.
*/
func New(id string, rc *redis.Client, batchMaxRun, lockTTL time.Duration, encDec EncodeDecoder) queue.Queue {
	ctx, cf := context.WithCancel(context.Background())
	rq := &redisQ{
		id:            id,
		rc:            rc,
		allBatchCtx:   ctx,
		allBatchCF:    cf,
		batchMaxRun:   batchMaxRun,
		lockTTL:       lockTTL,
		cancels:       make(map[string]context.CancelFunc),
		EncodeDecoder: encDec,
	}
	if batchMaxRun > 0 {
		go rq.dropTimedOutBatches()
	}
	return rq
}

// Push takes a batch and stores it in the queue or
// returns an error. The batch will count as pending.
func (rq *redisQ) Push(ctx context.Context, b *queue.Batch) error {
	if rq.allBatchCtx.Err() != nil {
		return queue.ErrQueueStopped
	}
	data, err := rq.Encode(ctx, b)
	if err != nil {
		return fmt.Errorf("pushing batch %s to queue: %v", b.ID, err)
	}
	seq, err := rq.rc.Incr(rq.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("pushing batch %s to queue: %v", b.ID, err)
	}
	bKeyPrefix := rq.batchKeyPrefix(b.ID)
	bDataKey := fmt.Sprintf("%s:data", bKeyPrefix)
	bSeqKey := fmt.Sprintf("%s:seq", bKeyPrefix)
	ok, err := rq.rc.SetNX(bDataKey, string(data), time.Duration(0)).Result()
	if err != nil {
		return fmt.Errorf("pushing batch %s to queue: %v", b.ID, err)
	}
	if !ok {
		return fmt.Errorf("pushing batch %s to queue: key %q already exists", b.ID, bDataKey)
	}
	if err = rq.rc.Set(bSeqKey, seq, time.Duration(0)).Err(); err != nil {
		rq.rc.Del(bDataKey)
		return fmt.Errorf("pushing batch %s to queue: %v", b.ID, err)
	}
	added, err := rq.rc.ZAdd(rq.pendingSetKey(), redis.Z{Score: float64(seq), Member: bKeyPrefix}).Result()
	if err != nil || added != 1 {
		rq.rc.Del(bDataKey, bSeqKey)
		if err == nil {
			err = fmt.Errorf("%q already in pending set %q", bKeyPrefix, rq.pendingSetKey())
		}
		return fmt.Errorf("pushing batch %s to queue %s: %v", b.ID, rq.id, err)
	}
	return nil
}

// Pull returns the pending batch pushed first and a
// context that times out after the queue's batchMaxRun,
// or an error.
// The pulled batch will be counted as running from
// then on.
// If there are no batches to pull, it returns 3 nil
// values.
func (rq *redisQ) Pull(ctx context.Context) (*queue.Batch, context.Context, error) {
	if rq.allBatchCtx.Err() != nil {
		return nil, nil, queue.ErrQueueStopped
	}
	pending, err := rq.rc.ZRange(rq.pendingSetKey(), 0, -1).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("listing pending batches in %q: %v", rq.pendingSetKey(), err)
	}
	for _, bKeyPrefix := range pending {
		var bctx context.Context
		var bcf context.CancelFunc
		if rq.batchMaxRun == 0 {
			bctx, bcf = context.WithCancel(rq.allBatchCtx)
		} else {
			bctx, bcf = context.WithTimeout(rq.allBatchCtx, rq.batchMaxRun)
		}
		err := rq.withLockFor(ctx, bKeyPrefix, 0, func(ctx context.Context) error {
			ok, err := rq.rc.SetNX(fmt.Sprintf("%s:running", bKeyPrefix), "true", rq.batchMaxRun).Result()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("batch %q already running", bKeyPrefix)
			}
			moved, err := movedReply(rq.rc.Eval(pullScript, []string{rq.pendingSetKey(), rq.runningSetKey()}, bKeyPrefix).Result())
			if err != nil || !moved {
				if ctx.Err() == nil {
					rq.rc.Del(fmt.Sprintf("%s:running", bKeyPrefix))
				}
				if err == nil {
					err = fmt.Errorf("no longer pending")
				}
				return fmt.Errorf("moving %q from %q set to %q set: %v", bKeyPrefix, rq.pendingSetKey(), rq.runningSetKey(), err)
			}
			return nil
		})
		if err == nil {
			bID := batchIDFromKeyPrefix(bKeyPrefix)
			bData, err := rq.rc.Get(fmt.Sprintf("%s:data", bKeyPrefix)).Result()
			if err != nil {
				bcf()
				rq.Drop(ctx, bID)
				continue
			}
			b, err := rq.Decode(ctx, []byte(bData))
			if err != nil {
				bcf()
				rq.Drop(ctx, bID)
				continue
			}
			rq.cancelLock.Lock()
			rq.cancels[bID] = bcf
			rq.cancelLock.Unlock()
			return b, bctx, nil
		}
		bcf()
	}
	return nil, nil, nil
}

// Drop takes the ID for a batch an makes it available
// for pulling from the Queue again, ahead of the batches
// pushed after it, unless it has been previously completed.
func (rq *redisQ) Drop(ctx context.Context, id string) error {
	rq.releaseContext(id)
	bKeyPrefix := rq.batchKeyPrefix(id)
	err := rq.withLockFor(ctx, bKeyPrefix, lockAttempts, func(ctx context.Context) error {
		keys := []string{rq.runningSetKey(), rq.pendingSetKey(), fmt.Sprintf("%s:seq", bKeyPrefix)}
		ok, err := movedReply(rq.rc.Eval(dropScript, keys, bKeyPrefix).Result())
		if err != nil {
			return fmt.Errorf("moving %q from %q to %q: %v", bKeyPrefix, rq.runningSetKey(), rq.pendingSetKey(), err)
		}
		if !ok {
			return nil
		}
		runningMarkKey := fmt.Sprintf("%s:running", bKeyPrefix)
		_, err = rq.rc.Del(runningMarkKey).Result()
		if err != nil {
			return fmt.Errorf("removing %q: %v", runningMarkKey, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dropping %s: %v", id, err)
	}
	return nil
}

// Complete takes the ID for a batch and removes it from
// the running set along with its data.
func (rq *redisQ) Complete(ctx context.Context, id string) error {
	rq.releaseContext(id)
	bKeyPrefix := rq.batchKeyPrefix(id)
	err := rq.withLockFor(ctx, bKeyPrefix, lockAttempts, func(ctx context.Context) error {
		count, err := rq.rc.SRem(rq.runningSetKey(), bKeyPrefix).Result()
		if err != nil {
			return fmt.Errorf("removing %q from %q: %v", bKeyPrefix, rq.runningSetKey(), err)
		}
		if count == 0 {
			return nil
		}
		keys := []string{fmt.Sprintf("%s:running", bKeyPrefix), fmt.Sprintf("%s:data", bKeyPrefix), fmt.Sprintf("%s:seq", bKeyPrefix)}
		_, err = rq.rc.Del(keys...).Result()
		if err != nil {
			return fmt.Errorf("removing %v: %v", keys, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("completing %s: %v", id, err)
	}
	return nil
}

// Count returns the number of
// pending and running batches in the queue
// or an error
func (rq *redisQ) Count(context.Context) (int, int, error) {
	// count pending and running sets at the same time to prevent a batch
	// moving between them from triggering a false "work finished" event
	cmd := redis.NewSliceCmd(
		"EVAL",
		`return {redis.call("ZCARD", KEYS[1]), redis.call("SCARD", KEYS[2])}`,
		2,
		rq.pendingSetKey(),
		rq.runningSetKey(),
	)
	err := rq.rc.Process(cmd)
	if err != nil {
		return 0, 0, fmt.Errorf("counting batches: %v", err)
	}
	v, err := cmd.Result()
	if err != nil {
		return 0, 0, fmt.Errorf("counting batches: %v", err)
	}
	return parseCounts(v)
}

// Stop cancels the contexts of pulled batches. Afterwards
// pushes and pulls fail with queue.ErrQueueStopped.
func (rq *redisQ) Stop(context.Context) error {
	rq.allBatchCF()
	return nil
}

func (rq *redisQ) releaseContext(id string) {
	rq.cancelLock.Lock()
	defer rq.cancelLock.Unlock()
	if cf, ok := rq.cancels[id]; ok {
		cf()
		delete(rq.cancels, id)
	}
}

// movedReply takes the result of running pullScript or dropScript and
// returns whether the batch was moved.
func movedReply(v interface{}, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, ok := v.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected reply %v (%T)", v, v)
	}
	return n == 1, nil
}

func parseCounts(v []interface{}) (int, int, error) {
	if len(v) != 2 {
		return 0, 0, fmt.Errorf("counting batches: redis returned %d counts instead of 2", len(v))
	}
	p64, ok := v[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("counting batches: cannot extract integer pending batches count from %v (%T)", v[0], v[0])
	}
	r64, ok := v[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("counting batches: cannot extract integer running batches count from %v (%T)", v[1], v[1])
	}
	return int(p64), int(r64), nil
}

func (rq *redisQ) batchKeyPrefix(batchID string) string {
	return fmt.Sprintf("%s:batch:%s", rq.id, batchID)
}

func batchIDFromKeyPrefix(keyPrefix string) string {
	tokens := strings.SplitN(keyPrefix, ":batch:", 2)
	return tokens[len(tokens)-1]
}

func (rq *redisQ) pendingSetKey() string {
	return fmt.Sprintf("%s:pending", rq.id)
}

func (rq *redisQ) seqKey() string {
	return fmt.Sprintf("%s:seq", rq.id)
}

func (rq *redisQ) runningSetKey() string {
	return fmt.Sprintf("%s:running", rq.id)
}

func (rq *redisQ) withLockFor(ctx context.Context, bKeyPrefix string, additionalAttempts int, f func(ctx context.Context) error) error {
	bLockKey := fmt.Sprintf("%s:lock", bKeyPrefix)
	bLockValue := randString(20)
	lctx, cf := context.WithTimeout(ctx, rq.lockTTL)
	defer cf()
	boolCMD := rq.rc.SetNX(bLockKey, bLockValue, rq.lockTTL)
	ok, err := boolCMD.Result()
	if err != nil {
		return fmt.Errorf("could not acquire lock: %v", err)
	}
	if !ok {
		if additionalAttempts > 0 {
			cf()
			d, _ := rq.rc.TTL(bLockKey).Result()
			time.Sleep(d + time.Duration(rand.Int63n(int64(failToLockSleep)*int64(additionalAttempts))))
			return rq.withLockFor(ctx, bKeyPrefix, additionalAttempts-1, f)
		}
		return fmt.Errorf("could not acquire lock: already taken")
	}
	defer func() {
		rq.rc.Eval(lockReleaseScript, []string{bLockKey}, bLockValue)
	}()
	return f(lctx)
}

func (rq *redisQ) dropTimedOutBatches() {
	ticker := time.NewTicker(rq.batchMaxRun / 2)
	defer ticker.Stop()
	for {
		iter := rq.rc.SScan(rq.runningSetKey(), 0, "", 0).Iterator()
		for iter.Next() {
			var timedOut bool
			bKeyPrefix := iter.Val()
			rq.withLockFor(rq.allBatchCtx, bKeyPrefix, 0, func(ctx context.Context) error {
				exists, err := rq.rc.Exists(fmt.Sprintf("%s:running", bKeyPrefix)).Result()
				if err != nil {
					return err
				}
				timedOut = !exists
				return nil
			})
			if timedOut {
				rq.Drop(rq.allBatchCtx, batchIDFromKeyPrefix(bKeyPrefix))
			}
			if rq.allBatchCtx.Err() != nil {
				return
			}
		}
		select {
		case <-rq.allBatchCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

const randStringChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randStringChars[rand.Intn(len(randStringChars))]
	}
	return string(b)
}
