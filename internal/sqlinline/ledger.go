package sqlinline

const QSelectBalance = `--sql b6b128a1-768d-4ea9-8b59-c9ad6a9cc1fd
select balance::text, reserved::text
from user_balances
where user_id = $1::uuid;
`

// QAdjustBalance seeds a missing row with the signed amount.
const QAdjustBalance = `--sql 65f99016-9f34-40c0-a42e-806867cfdffd
insert into user_balances (user_id, balance, updated_at)
values (
  $1::uuid,
  case when $3::text = 'add' then $2::numeric else -$2::numeric end,
  now()
)
on conflict (user_id) do update set
  balance = user_balances.balance + excluded.balance,
  updated_at = now()
returning balance::text;
`

const QChargeGeneration = `--sql a760db86-3750-4428-97bb-28d2e4a2df8c
with
charged as (
  update generations
  set charge_status = 'charged',
      charged_at = now(),
      updated_at = now()
  where id = $1::uuid
    and status = 'completed'
    and charge_status in ('none', 'failed')
  returning id, user_id, cost
),
debited as (
  update user_balances b
  set balance = b.balance - c.cost,
      reserved = greatest(b.reserved - c.cost, 0),
      updated_at = now()
  from charged c
  where b.user_id = c.user_id
  returning b.user_id, b.balance
)
select c.id, c.user_id, c.cost::text, coalesce(d.balance, 0)::text
from charged c
left join debited d on d.user_id = c.user_id;
`

const QMarkChargeFailed = `--sql 446ea914-b947-44c5-bbb4-3cc0b6993656
update generations
set charge_status = 'failed', updated_at = now()
where id = $1::uuid
  and charge_status = 'none';
`

const QInsertTransaction = `--sql 7cd9e3a5-1742-4359-afdf-511ba92d587e
insert into transactions (user_id, type, amount, description, payment_id, status)
values ($1::uuid, $2::text, $3::numeric, $4::text, nullif($5::text, ''), $6::text);
`

const QListTransactions = `--sql 2dd4b17d-769f-4f0b-b0b8-9a90b6fadc6a
select id, user_id, type, amount::text, description, coalesce(payment_id, ''), status, created_at
from transactions
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`
